package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/events"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/metrics"
	"github.com/google/uuid"
)

var (
	ErrNoItems      = errors.New("no items to process")
	ErrTooManyItems = errors.New("too many items")
	ErrInvalidItems = errors.New("invalid items")
)

type EventPublisher interface {
	Publish(ctx context.Context, kind string, v any) error
}

type SubmitOptions struct {
	// OriginalFileRef points at the uploaded file the items were read from.
	OriginalFileRef string
}

type CoordinatorOption func(c *Coordinator)

func WithEvents(p EventPublisher) CoordinatorOption {
	return func(c *Coordinator) {
		c.events = p
	}
}

// Coordinator creates jobs, fans rows out to the dispatcher and fans them back
// in to a single Finalize per job.
type Coordinator struct {
	store      store.Store
	runner     *RowRunner
	dispatcher Dispatcher
	writer     ResultWriter
	events     EventPublisher
	maxRows    int
	logger     *log.StructuredLogger
}

var _ RowExecutor = (*Coordinator)(nil)

// NewCoordinator binds itself to the dispatcher as the row executor.
func NewCoordinator(s store.Store, runner *RowRunner, dispatcher Dispatcher, writer ResultWriter, maxRows int, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      s,
		runner:     runner,
		dispatcher: dispatcher,
		writer:     writer,
		maxRows:    maxRows,
		logger:     log.NewDebugLogger("coordinator"),
	}
	for _, o := range opts {
		o(c)
	}
	dispatcher.Bind(c)
	return c
}

// SubmitJob writes the job and all its rows, then dispatches one task per row.
func (c *Coordinator) SubmitJob(ctx context.Context, items []domain.Prospect, opts SubmitOptions) (string, error) {
	tracer := c.logger.WithContext(ctx).Operation("submit_job").WithInt("items", len(items)).Build()

	if len(items) == 0 {
		return "", ErrNoItems
	}
	if c.maxRows > 0 && len(items) > c.maxRows {
		return "", fmt.Errorf("%w: %d items, at most %d allowed", ErrTooManyItems, len(items), c.maxRows)
	}
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.CompanyName == "" {
			return "", fmt.Errorf("%w: row %d has no company name", ErrInvalidItems, it.RowIndex)
		}
		if _, dup := seen[it.RowIndex]; dup {
			return "", fmt.Errorf("%w: duplicate row index %d", ErrInvalidItems, it.RowIndex)
		}
		seen[it.RowIndex] = struct{}{}
	}

	job := &model.Job{
		ID:              uuid.NewString(),
		TotalRows:       len(items),
		Status:          model.JobStatusProcessing,
		OriginalFileRef: opts.OriginalFileRef,
	}
	if err := c.create(ctx, job, items); err != nil {
		tracer.Error(err).Log()
		return "", err
	}
	tracer.Step("job_created").WithString("job_id", job.ID).Log()

	tracer.Success().WithString("job_id", job.ID).Log()
	return job.ID, nil
}

// SubmitSingleItem runs one prospect as a job of one row without finalize.
// The job status follows the row's terminal status.
func (c *Coordinator) SubmitSingleItem(ctx context.Context, item domain.Prospect) (string, error) {
	tracer := c.logger.WithContext(ctx).Operation("submit_single").WithString("company", item.CompanyName).Build()

	if item.CompanyName == "" {
		return "", fmt.Errorf("%w: company name is required", ErrInvalidItems)
	}
	item.RowIndex = 0

	job := &model.Job{
		ID:        uuid.NewString(),
		TotalRows: 1,
		Status:    model.JobStatusProcessing,
		IsSingle:  true,
	}
	if err := c.create(ctx, job, []domain.Prospect{item}); err != nil {
		tracer.Error(err).Log()
		return "", err
	}

	tracer.Success().WithString("job_id", job.ID).Log()
	return job.ID, nil
}

func (c *Coordinator) create(ctx context.Context, job *model.Job, items []domain.Prospect) error {
	rows := make([]model.Row, 0, len(items))
	tasks := make([]RowTask, 0, len(items))
	for _, it := range items {
		rows = append(rows, model.Row{
			JobID:        job.ID,
			RowIndex:     it.RowIndex,
			CompanyName:  it.CompanyName,
			Industry:     it.Industry,
			WebsiteURL:   it.WebsiteURL,
			ContactName:  it.ContactName,
			ContactTitle: it.ContactTitle,
			ExtraContext: it.ExtraContext,
			Status:       model.RowStatusQueued,
		})
		tasks = append(tasks, RowTask{JobID: job.ID, RowIndex: it.RowIndex})
	}

	if err := c.store.Progress().CreateJob(ctx, job, rows); err != nil {
		return err
	}

	if err := c.dispatcher.Dispatch(ctx, tasks...); err != nil {
		reason := fmt.Sprintf("dispatching rows: %v", err)
		if ferr := c.store.Progress().FailJob(ctx, job.ID, reason); ferr != nil {
			return errors.Join(err, ferr)
		}
		return fmt.Errorf("dispatching rows: %w", err)
	}
	return nil
}

// CancelJob raises the abort flag. Rows that have not started fail as cancelled;
// adapter calls already running finish on their own.
func (c *Coordinator) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	tracer := c.logger.WithContext(ctx).Operation("cancel_job").WithString("job_id", jobID).Build()

	job, err := c.store.Progress().CancelJob(ctx, jobID)
	if err != nil {
		tracer.Error(err).Log()
		return job, err
	}

	tracer.Success().Log()
	return job, nil
}

// ExecuteRow runs one row, records its terminal status and, when it is the
// last row of the job, claims and runs Finalize.
func (c *Coordinator) ExecuteRow(ctx context.Context, task RowTask) error {
	tracer := c.logger.WithContext(ctx).
		Operation("execute_row").
		WithString("job_id", task.JobID).
		WithInt("row_index", task.RowIndex).
		Build()

	job, err := c.store.Progress().ReadJob(ctx, task.JobID)
	if err != nil {
		tracer.Error(err).WithString("step", "read_job").Log()
		return err
	}
	row, err := c.store.Progress().ReadRow(ctx, task.JobID, task.RowIndex)
	if err != nil {
		tracer.Error(err).WithString("step", "read_row").Log()
		return err
	}

	outcome := c.runner.RunRow(ctx, task.JobID, prospectFromRow(*row))
	if interrupted(ctx, outcome) {
		// the row stays where it stopped and restarts on redelivery
		tracer.Step("row_interrupted").WithString("stage", string(outcome.Err.Stage)).Log()
		return ctx.Err()
	}

	// the outcome is paid for, so it is recorded even if ctx ends now
	ctx = context.WithoutCancel(ctx)

	signalled, updated, err := c.recordTerminal(ctx, outcome)
	if err != nil {
		tracer.Error(err).WithString("step", "record_terminal").Log()
		return err
	}
	tracer.Step("row_terminal").
		WithString("status", string(outcome.Status)).
		WithBool("signalled", signalled).
		WithInt("finished", updated.Finished()).
		WithInt("total", updated.TotalRows).
		Log()

	if signalled {
		kind := ""
		if outcome.Err != nil {
			kind = string(outcome.Err.Kind)
		}
		metrics.IncreaseRowsTotalMetric(string(outcome.Status), kind)
		c.recordDeck(ctx, outcome)
		c.publish(ctx, events.RowMessageKind, rowEvent(outcome))
	}

	if !updated.AllRowsTerminal() || updated.Status.IsTerminal() {
		return nil
	}
	if job.IsSingle {
		return c.finishSingle(ctx, task.JobID)
	}
	return c.tryFinalize(ctx, task.JobID)
}

// interrupted reports a row stopped by the end of ctx rather than by the job's cancel flag.
func interrupted(ctx context.Context, o RowOutcome) bool {
	if ctx.Err() == nil || o.Status != model.RowStatusFailed || o.Err == nil {
		return false
	}
	return o.Err.Kind == model.ErrorKindCancelled && !errors.Is(o.Err, ErrJobCancelled)
}

// recordTerminal marks the row terminal and bumps the matching job counter in
// one transaction. Only the call that actually moved the row gets signalled.
func (c *Coordinator) recordTerminal(ctx context.Context, o RowOutcome) (bool, *model.Job, error) {
	txCtx, err := c.store.NewTransactionContext(ctx)
	if err != nil {
		return false, nil, err
	}

	signalled, err := c.store.Progress().MarkRowTerminal(txCtx, o.JobID, o.RowIndex, o.Status, o.TerminalFields())
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return false, nil, err
	}

	var job *model.Job
	if signalled {
		job, err = c.store.Progress().IncrementJobCounter(txCtx, o.JobID, o.Counter())
	} else {
		job, err = c.store.Progress().ReadJob(txCtx, o.JobID)
	}
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return false, nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return false, nil, err
	}
	return signalled, job, nil
}

func (c *Coordinator) tryFinalize(ctx context.Context, jobID string) error {
	claimed, err := c.store.Progress().ClaimFinalize(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	return c.Finalize(ctx, jobID)
}

// Finalize hands every row outcome to the result writer once and completes the
// job. Callers must hold the finalize latch. When finalize cannot persist its
// own result the job ends Failed; if even that write fails the latch is
// released so a redelivered row can finalize again.
func (c *Coordinator) Finalize(ctx context.Context, jobID string) error {
	tracer := c.logger.WithContext(ctx).Operation("finalize_job").WithString("job_id", jobID).Build()

	job, err := c.store.Progress().ReadJob(ctx, jobID)
	if err != nil {
		tracer.Error(err).WithString("step", "read_job").Log()
		return c.abortFinalize(ctx, jobID, err)
	}
	rows, err := c.store.Progress().ListRows(ctx, jobID)
	if err != nil {
		tracer.Error(err).WithString("step", "list_rows").Log()
		return c.abortFinalize(ctx, jobID, err)
	}

	ref, werr := c.writer.WriteResults(ctx, *job, rows)
	if werr != nil {
		tracer.Error(werr).WithString("step", "write_results").Log()
		if err := c.store.Progress().FailJob(ctx, jobID, werr.Error()); err != nil && !errors.Is(err, store.ErrJobFinished) {
			return c.abortFinalize(ctx, jobID, err)
		}
		metrics.IncreaseFinalizeTotalMetric("failed")
	} else {
		if err := c.store.Progress().CompleteJob(ctx, jobID, ref); err != nil && !errors.Is(err, store.ErrJobFinished) {
			tracer.Error(err).WithString("step", "complete_job").Log()
			return c.abortFinalize(ctx, jobID, err)
		}
		metrics.IncreaseFinalizeTotalMetric("complete")
	}

	final, err := c.store.Progress().ReadJob(ctx, jobID)
	if err != nil {
		// the job is already terminal, only the event is lost
		tracer.Error(err).WithString("step", "read_final").Log()
		return nil
	}
	c.publish(ctx, events.JobMessageKind, jobEvent(*final))

	tracer.Success().WithString("status", string(final.Status)).WithString("output", final.OutputArtifactRef).Log()
	return nil
}

// abortFinalize fails the job with cause. When the job cannot be failed either,
// the latch is released and cause is returned so the row gets redelivered.
func (c *Coordinator) abortFinalize(ctx context.Context, jobID string, cause error) error {
	tracer := c.logger.WithContext(ctx).Operation("abort_finalize").WithString("job_id", jobID).Build()

	err := c.store.Progress().FailJob(ctx, jobID, fmt.Sprintf("finalize failed: %v", cause))
	if err == nil || errors.Is(err, store.ErrJobFinished) {
		metrics.IncreaseFinalizeTotalMetric("failed")
		tracer.Step("job_failed").WithString("cause", cause.Error()).Log()
		if final, rerr := c.store.Progress().ReadJob(ctx, jobID); rerr == nil {
			c.publish(ctx, events.JobMessageKind, jobEvent(*final))
		}
		return nil
	}
	tracer.Error(err).WithString("step", "fail_job").Log()

	if rerr := c.store.Progress().ReleaseFinalize(ctx, jobID); rerr != nil {
		tracer.Error(rerr).WithString("step", "release_latch").Log()
	}
	return cause
}

func (c *Coordinator) finishSingle(ctx context.Context, jobID string) error {
	row, err := c.store.Progress().ReadRow(ctx, jobID, 0)
	if err != nil {
		return err
	}

	if row.Status == model.RowStatusComplete {
		err = c.store.Progress().CompleteJob(ctx, jobID, "")
	} else {
		err = c.store.Progress().FailJob(ctx, jobID, row.Error)
	}
	if err != nil && !errors.Is(err, store.ErrJobFinished) {
		return err
	}

	final, err := c.store.Progress().ReadJob(ctx, jobID)
	if err != nil {
		return err
	}
	c.publish(ctx, events.JobMessageKind, jobEvent(*final))
	return nil
}

// recordDeck keeps a history entry for a completed row. Failures are only logged.
func (c *Coordinator) recordDeck(ctx context.Context, o RowOutcome) {
	if o.Status != model.RowStatusComplete || o.Artifact == nil {
		return
	}

	deck := model.GeneratedDeck{
		JobID:        o.JobID,
		RowIndex:     o.RowIndex,
		CompanyName:  o.Prospect.CompanyName,
		Industry:     o.Prospect.Industry,
		ContactName:  o.Prospect.ContactName,
		ContactTitle: o.Prospect.ContactTitle,
		DeckURL:      o.Artifact.URL,
		ExportURL:    o.Artifact.PrimaryExport(),
		GenerationID: o.Artifact.GenerationID,
	}
	deck.Research, _ = json.Marshal(o.Research)
	deck.Content, _ = json.Marshal(o.Content)
	ids := make([]string, 0, len(o.Services))
	for _, s := range o.Services {
		ids = append(ids, s.ID)
	}
	deck.MappedServices, _ = json.Marshal(ids)

	if _, err := c.store.Deck().Create(ctx, deck); err != nil {
		c.logger.WithContext(ctx).Operation("record_deck").WithString("job_id", o.JobID).Build().Error(err).Log()
	}
}

func (c *Coordinator) publish(ctx context.Context, kind string, v any) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, kind, v); err != nil {
		c.logger.WithContext(ctx).Operation("publish_event").WithString("kind", kind).Build().Error(err).Log()
	}
}

func rowEvent(o RowOutcome) events.RowEvent {
	e := events.RowEvent{
		JobID:       o.JobID,
		RowIndex:    o.RowIndex,
		CompanyName: o.Prospect.CompanyName,
		Status:      string(o.Status),
		Attempt:     o.Attempt,
		Timestamp:   time.Now(),
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
		e.ErrorKind = string(o.Err.Kind)
	}
	if o.Artifact != nil {
		e.DeckURL = o.Artifact.URL
	}
	return e
}

func jobEvent(j model.Job) events.JobEvent {
	return events.JobEvent{
		JobID:      j.ID,
		Status:     string(j.Status),
		TotalRows:  j.TotalRows,
		Completed:  j.CompletedCount,
		Failed:     j.FailedCount,
		OutputFile: j.OutputArtifactRef,
		Single:     j.IsSingle,
		Error:      j.Error,
		Timestamp:  time.Now(),
	}
}

func prospectFromRow(r model.Row) domain.Prospect {
	return domain.Prospect{
		RowIndex:     r.RowIndex,
		CompanyName:  r.CompanyName,
		Industry:     r.Industry,
		WebsiteURL:   r.WebsiteURL,
		ContactName:  r.ContactName,
		ContactTitle: r.ContactTitle,
		ExtraContext: r.ExtraContext,
	}
}
