package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

var ErrNoExecutor = errors.New("row worker has no executor bound")

type RowWorker struct {
	river.WorkerDefaults[RowArgs]
	mu   sync.RWMutex
	exec pipeline.RowExecutor
}

func NewRowWorker() *RowWorker {
	return &RowWorker{}
}

func (w *RowWorker) Bind(exec pipeline.RowExecutor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exec = exec
}

func (w *RowWorker) Timeout(job *river.Job[RowArgs]) time.Duration {
	return JobTimeout
}

func (w *RowWorker) Work(ctx context.Context, job *river.Job[RowArgs]) error {
	// Check for cancellation before starting
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	exec := w.exec
	w.mu.RUnlock()
	if exec == nil {
		return ErrNoExecutor
	}

	err := exec.ExecuteRow(ctx, pipeline.RowTask{JobID: job.Args.JobID, RowIndex: job.Args.RowIndex})
	if err != nil {
		zap.S().Named("row_worker").Errorw("row execution failed",
			"river_job_id", job.ID, "attempt", job.Attempt, "job_id", job.Args.JobID, "row_index", job.Args.RowIndex, "error", err)
	}
	return err
}
