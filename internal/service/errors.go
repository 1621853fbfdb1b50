package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrRowNotFound(jobID string, rowIndex int) *ErrResourceNotFound {
	return NewErrResourceNotFound(fmt.Sprintf("%s/%d", jobID, rowIndex), "row")
}

func NewErrDeckNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "deck")
}

type ErrInvalidSubmission struct {
	error
}

func NewErrInvalidSubmission(format string, args ...any) *ErrInvalidSubmission {
	return &ErrInvalidSubmission{fmt.Errorf(format, args...)}
}

type ErrJobAlreadyFinished struct {
	error
}

func NewErrJobAlreadyFinished(id string) *ErrJobAlreadyFinished {
	return &ErrJobAlreadyFinished{fmt.Errorf("job %s already finished", id)}
}

type ErrOutputNotReady struct {
	error
}

func NewErrOutputNotReady(id string) *ErrOutputNotReady {
	return &ErrOutputNotReady{fmt.Errorf("output file of job %s not ready yet, job may still be processing", id)}
}

type ErrProviderUnavailable struct {
	error
}

func NewErrProviderUnavailable(provider string, err error) *ErrProviderUnavailable {
	return &ErrProviderUnavailable{fmt.Errorf("failed to fetch from %s: %w", provider, err)}
}
