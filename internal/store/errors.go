package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrJobFinished is returned when a terminal job is asked to change status.
	ErrJobFinished = errors.New("job already finished")
	// ErrCounterSaturated is returned when completed+failed already equals total_rows.
	ErrCounterSaturated = errors.New("job counters already account for every row")
	ErrInvalidStatus    = errors.New("invalid status")
)
