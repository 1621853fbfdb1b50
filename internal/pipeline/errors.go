package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
)

type Stage string

const (
	StageResearch   Stage = "research"
	StageSynthesize Stage = "synthesize"
	StageProduce    Stage = "produce"
)

// StageError is the failure of one stage adapter, after the adapter's own retries.
type StageError struct {
	Stage Stage
	Kind  model.ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the row may be restarted after this failure.
func (e *StageError) Retryable() bool {
	return e.Kind == model.ErrorKindTransient || e.Kind == model.ErrorKindTimeout
}

func newStageError(stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: stage, Kind: KindOf(err), Err: err}
}

type classifiedError struct {
	kind model.ErrorKind
	err  error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func classify(kind model.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: err}
}

// Transient marks err as worth retrying: network failures, 5xx, rate limits.
func Transient(err error) error { return classify(model.ErrorKindTransient, err) }

// Permanent marks err as final: validation errors, malformed responses.
func Permanent(err error) error { return classify(model.ErrorKindPermanent, err) }

// Timeout marks err as an exceeded wait budget.
func Timeout(err error) error { return classify(model.ErrorKindTimeout, err) }

// Cancelled marks err as caused by a job-level abort.
func Cancelled(err error) error { return classify(model.ErrorKindCancelled, err) }

// KindOf classifies err. Unclassified errors are permanent, except deadline
// and network errors which are transient.
func KindOf(err error) model.ErrorKind {
	if err == nil {
		return ""
	}

	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorKindTransient
	}
	if errors.Is(err, context.Canceled) {
		return model.ErrorKindCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.ErrorKindTransient
	}
	return model.ErrorKindPermanent
}

// IsRetryable reports whether an adapter call failing with err may be attempted again.
func IsRetryable(err error) bool {
	return KindOf(err) == model.ErrorKindTransient
}

// ClassifyStatus wraps err according to the HTTP status of the response that caused it.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return Transient(err)
	default:
		return Permanent(err)
	}
}
