package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/metrics"
)

// StageDispatch labels failures that happen before or between adapter calls.
const StageDispatch Stage = "dispatch"

var ErrJobCancelled = errors.New("job cancelled")

type RowConfig struct {
	// CoolDown is the pause after research and after synthesis.
	CoolDown time.Duration
	// RowRetries is how many times a whole row may restart after a retryable failure.
	RowRetries int
	// RowBackoff is the delay before the first restart, doubled for each later one.
	RowBackoff  time.Duration
	Research    RetryPolicy
	Synthesize  RetryPolicy
	Submit      RetryPolicy
	Poll        PollPolicy
	TopServices int
	ThemeID     string
	// Sleep waits for cool-downs and row backoffs. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRowConfig(cfg *config.PipelineConfig, themeID string) RowConfig {
	adapter := func(timeout time.Duration) RetryPolicy {
		return RetryPolicy{
			Attempts:       cfg.AdapterAttempts,
			Backoff:        cfg.AdapterBackoff,
			MaxBackoff:     cfg.AdapterMaxBackoff,
			AttemptTimeout: timeout,
		}
	}
	return RowConfig{
		CoolDown:    cfg.CoolDown,
		RowRetries:  cfg.RowRetries,
		RowBackoff:  cfg.RowBackoff,
		Research:    adapter(cfg.ResearchTimeout),
		Synthesize:  adapter(cfg.ContentTimeout),
		Submit:      adapter(cfg.SubmitTimeout),
		Poll:        PollPolicy{Interval: cfg.PollInterval, MaxWait: cfg.PollMaxWait},
		TopServices: cfg.TopServices,
		ThemeID:     themeID,
	}
}

// RowOutcome is the terminal result of one row run.
type RowOutcome struct {
	JobID    string
	RowIndex int
	Prospect domain.Prospect
	Status   model.RowStatus
	Attempt  int
	// FailedStage is the last status the row held before failing.
	FailedStage model.RowStatus
	Err         *StageError
	Research    *domain.Research
	Content     *domain.Content
	Services    []domain.Service
	Artifact    *domain.Artifact
	// Replayed is set when the row was already terminal before this run.
	Replayed bool
}

func (o RowOutcome) Counter() model.JobCounter {
	if o.Status == model.RowStatusComplete {
		return model.JobCounterCompleted
	}
	return model.JobCounterFailed
}

// TerminalFields are the row fields written together with the terminal status.
func (o RowOutcome) TerminalFields() model.RowFields {
	attempt := o.Attempt
	fields := model.RowFields{Attempt: &attempt}
	if o.Err != nil {
		msg := o.Err.Error()
		kind := o.Err.Kind
		stage := o.FailedStage
		fields.Error = &msg
		fields.ErrorKind = &kind
		fields.FailedStage = &stage
	}
	if o.Artifact != nil {
		url := o.Artifact.URL
		export := o.Artifact.PrimaryExport()
		id := o.Artifact.GenerationID
		fields.ArtifactURL = &url
		fields.ExportURL = &export
		fields.ArtifactID = &id
	}
	return fields
}

// rowState tracks where a run currently is.
type rowState struct {
	status model.RowStatus
	stage  Stage
}

// RowRunner drives a single prospect through research, synthesis and production.
// It persists every non-terminal transition; the terminal write belongs to the Coordinator.
type RowRunner struct {
	progress    store.Progress
	researcher  Researcher
	synthesizer Synthesizer
	producer    Producer
	matcher     ServiceMatcher
	cfg         RowConfig
	logger      *log.StructuredLogger
}

func NewRowRunner(progress store.Progress, researcher Researcher, synthesizer Synthesizer, producer Producer, matcher ServiceMatcher, cfg RowConfig) *RowRunner {
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return &RowRunner{
		progress:    progress,
		researcher:  researcher,
		synthesizer: synthesizer,
		producer:    producer,
		matcher:     matcher,
		cfg:         cfg,
		logger:      log.NewDebugLogger("row_runner"),
	}
}

// RunRow never panics and never returns an error: every failure ends up in the outcome.
func (r *RowRunner) RunRow(ctx context.Context, jobID string, item domain.Prospect) (outcome RowOutcome) {
	tracer := r.logger.WithContext(ctx).
		Operation("run_row").
		WithString("job_id", jobID).
		WithInt("row_index", item.RowIndex).
		WithString("company", item.CompanyName).
		Build()

	outcome = RowOutcome{JobID: jobID, RowIndex: item.RowIndex, Prospect: item}
	state := &rowState{status: model.RowStatusQueued, stage: StageDispatch}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in row pipeline: %v", rec)
			tracer.Error(err).WithString("stack", string(debug.Stack())).Log()
			outcome = r.failed(outcome, state, &StageError{Stage: state.stage, Kind: model.ErrorKindPermanent, Err: err})
		}
	}()

	row, err := r.progress.ReadRow(ctx, jobID, item.RowIndex)
	if err != nil {
		tracer.Error(err).WithString("step", "read_row").Log()
		return r.failed(outcome, state, newStageError(StageDispatch, err))
	}
	if row.Status.IsTerminal() {
		tracer.Step("row_already_terminal").WithString("status", string(row.Status)).Log()
		outcome.Status = row.Status
		outcome.Attempt = row.Attempt
		outcome.Replayed = true
		return outcome
	}
	state.status = row.Status

	for attempt := row.Attempt + 1; ; attempt++ {
		outcome.Attempt = attempt
		tracer.Step("attempt_started").WithInt("attempt", attempt).Log()

		err := r.runAttempt(ctx, jobID, item, attempt, state, &outcome)
		if err == nil {
			outcome.Status = model.RowStatusComplete
			tracer.Success().WithInt("attempt", attempt).WithString("deck_url", outcome.Artifact.URL).Log()
			return outcome
		}

		se := newStageError(state.stage, err)
		if !se.Retryable() || attempt > r.cfg.RowRetries {
			tracer.Error(se).WithInt("attempt", attempt).WithString("kind", string(se.Kind)).Log()
			return r.failed(outcome, state, se)
		}

		backoff := r.cfg.RowBackoff << (attempt - row.Attempt - 1)
		tracer.Step("row_retry_scheduled").
			WithInt("attempt", attempt).
			WithString("stage", string(se.Stage)).
			WithString("kind", string(se.Kind)).
			WithDuration("backoff", backoff).
			Log()
		if err := r.cfg.Sleep(ctx, backoff); err != nil {
			return r.failed(outcome, state, newStageError(se.Stage, err))
		}
	}
}

func (r *RowRunner) failed(outcome RowOutcome, state *rowState, se *StageError) RowOutcome {
	outcome.Status = model.RowStatusFailed
	outcome.FailedStage = state.status
	outcome.Err = se
	return outcome
}

func (r *RowRunner) runAttempt(ctx context.Context, jobID string, item domain.Prospect, attempt int, state *rowState, outcome *RowOutcome) error {
	if err := r.enter(ctx, jobID, item.RowIndex, state, model.RowStatusResearching, StageResearch, model.RowFields{Attempt: &attempt}); err != nil {
		return err
	}
	research, err := timed(StageResearch, func() (*domain.Research, error) {
		return Retry(ctx, r.policy(r.cfg.Research, StageResearch), func(ctx context.Context) (*domain.Research, error) {
			return r.researcher.Research(ctx, item)
		})
	})
	if err != nil {
		return err
	}
	outcome.Research = research
	researchPayload, err := json.Marshal(research)
	if err != nil {
		return Permanent(err)
	}
	if err := r.cfg.Sleep(ctx, r.cfg.CoolDown); err != nil {
		return err
	}

	if err := r.enter(ctx, jobID, item.RowIndex, state, model.RowStatusGeneratingContent, StageSynthesize, model.RowFields{Research: researchPayload}); err != nil {
		return err
	}
	services := r.matcher.MatchServices(*research, item.Industry, r.cfg.TopServices)
	outcome.Services = services
	content, err := timed(StageSynthesize, func() (*domain.Content, error) {
		return Retry(ctx, r.policy(r.cfg.Synthesize, StageSynthesize), func(ctx context.Context) (*domain.Content, error) {
			return r.synthesizer.Synthesize(ctx, item, *research, services)
		})
	})
	if err != nil {
		return err
	}
	outcome.Content = content
	contentPayload, err := json.Marshal(content)
	if err != nil {
		return Permanent(err)
	}
	if err := r.cfg.Sleep(ctx, r.cfg.CoolDown); err != nil {
		return err
	}

	if err := r.enter(ctx, jobID, item.RowIndex, state, model.RowStatusCreatingArtifact, StageProduce, model.RowFields{Content: contentPayload}); err != nil {
		return err
	}
	artifact, err := timed(StageProduce, func() (*domain.Artifact, error) {
		return r.produce(ctx, content.InputText)
	})
	if err != nil {
		return err
	}
	outcome.Artifact = artifact

	return nil
}

// enter checks the job abort flag, then persists the transition to next.
func (r *RowRunner) enter(ctx context.Context, jobID string, rowIndex int, state *rowState, next model.RowStatus, stage Stage, fields model.RowFields) error {
	job, err := r.progress.ReadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Cancelled {
		return Cancelled(ErrJobCancelled)
	}
	if !state.status.CanTransitionTo(next) {
		return Permanent(fmt.Errorf("illegal row transition %s -> %s", state.status, next))
	}
	if err := r.progress.WriteRowStatus(ctx, jobID, rowIndex, next, fields); err != nil {
		return err
	}
	state.status = next
	state.stage = stage
	return nil
}

func (r *RowRunner) produce(ctx context.Context, inputText string) (*domain.Artifact, error) {
	submit := func(ctx context.Context) (string, error) {
		return Retry(ctx, r.policy(r.cfg.Submit, StageProduce), func(ctx context.Context) (string, error) {
			return r.producer.Submit(ctx, inputText, r.cfg.ThemeID)
		})
	}
	status := func(ctx context.Context, id string) (PollStatus[domain.Artifact], error) {
		if r.cfg.Submit.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.Submit.AttemptTimeout)
			defer cancel()
		}
		return r.producer.Status(ctx, id)
	}

	artifact, err := Poll(ctx, r.cfg.Poll, submit, status)
	if err != nil {
		return nil, err
	}
	if artifact.URL == "" {
		return nil, Permanent(errors.New("generation completed without a document url"))
	}
	return &artifact, nil
}

func (r *RowRunner) policy(p RetryPolicy, stage Stage) RetryPolicy {
	p.OnRetry = func(attempt int, err error) {
		metrics.IncreaseAdapterRetriesMetric(string(stage))
		r.logger.Operation("adapter_retry").
			WithString("stage", string(stage)).
			WithInt("attempt", attempt).
			Build().
			Step("retrying").
			WithString("cause", fmt.Sprint(err)).
			Log()
	}
	return p
}

func timed[T any](stage Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.ObserveStageDuration(string(stage), outcome, time.Since(start).Seconds())
	return v, err
}
