package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// RowTask identifies one unit of work: a single row of a job.
type RowTask struct {
	JobID    string `json:"job_id"`
	RowIndex int    `json:"row_index"`
}

type RowExecutor interface {
	ExecuteRow(ctx context.Context, task RowTask) error
}

// Dispatcher hands row tasks to workers. Dispatch must not wait for the rows to run.
type Dispatcher interface {
	Bind(exec RowExecutor)
	Dispatch(ctx context.Context, tasks ...RowTask) error
}

var ErrDispatcherNotBound = errors.New("dispatcher has no row executor")

// LocalDispatcher runs rows in goroutines of this process, at most workers at a time.
// Rows run under the dispatcher's own context so they outlive the submitting request.
type LocalDispatcher struct {
	ctx  context.Context
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	mu   sync.RWMutex
	exec RowExecutor
}

var _ Dispatcher = (*LocalDispatcher)(nil)

func NewLocalDispatcher(ctx context.Context, workers int) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &LocalDispatcher{
		ctx: ctx,
		sem: semaphore.NewWeighted(int64(workers)),
	}
}

func (d *LocalDispatcher) Bind(exec RowExecutor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exec = exec
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, tasks ...RowTask) error {
	d.mu.RLock()
	exec := d.exec
	d.mu.RUnlock()
	if exec == nil {
		return ErrDispatcherNotBound
	}

	runCtx := requestid.Carry(ctx, d.ctx)

	for _, t := range tasks {
		d.wg.Add(1)
		go func(t RowTask) {
			defer d.wg.Done()
			if err := d.sem.Acquire(runCtx, 1); err != nil {
				zap.S().Named("dispatcher").Warnw("row not started", "job_id", t.JobID, "row_index", t.RowIndex, "error", err)
				return
			}
			defer d.sem.Release(1)

			if err := exec.ExecuteRow(runCtx, t); err != nil {
				zap.S().Named("dispatcher").Errorw("row execution failed", "job_id", t.JobID, "row_index", t.RowIndex, "error", err)
			}
		}(t)
	}
	return nil
}

// Wait blocks until every dispatched row has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
