package jobs

import (
	"context"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"
)

// Client is a River client that doubles as the durable row dispatcher:
// every row becomes one River job.
type Client struct {
	*river.Client[pgx.Tx]
	worker *RowWorker
}

var _ pipeline.Dispatcher = (*Client)(nil)

func NewClient(pool *pgxpool.Pool, maxWorkers int) (*Client, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	worker := NewRowWorker()
	workers := river.NewWorkers()
	river.AddWorker(workers, worker)

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,

		FetchCooldown:     50 * time.Millisecond,
		FetchPollInterval: 100 * time.Millisecond,

		CancelledJobRetentionPeriod: 24 * time.Hour,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		// failed rows are kept longer for debugging
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient, worker: worker}, nil
}

func (c *Client) Bind(exec pipeline.RowExecutor) {
	c.worker.Bind(exec)
}

func (c *Client) Dispatch(ctx context.Context, tasks ...pipeline.RowTask) error {
	if len(tasks) == 0 {
		return nil
	}

	params := make([]river.InsertManyParams, 0, len(tasks))
	for _, t := range tasks {
		params = append(params, river.InsertManyParams{Args: RowArgs{JobID: t.JobID, RowIndex: t.RowIndex}})
	}

	results, err := c.InsertMany(ctx, params)
	if err != nil {
		return err
	}

	zap.S().Named("river").Debugw("rows enqueued", "job_id", tasks[0].JobID, "count", len(results), "first_river_job", firstJobID(results))
	return nil
}

func firstJobID(results []*rivertype.JobInsertResult) int64 {
	if len(results) == 0 || results[0].Job == nil {
		return 0
	}
	return results[0].Job.ID
}
