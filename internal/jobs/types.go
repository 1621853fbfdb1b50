package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

const (
	DefaultQueue = "prospect_rows"
	JobKind      = "prospect_row"
	// MaxJobAttempts covers crashes and store errors; stage failures are
	// retried inside the row and never reach River.
	MaxJobAttempts = 3
	// JobTimeout disables River's own deadline. A row is bounded by its adapter
	// timeouts and the poll budget, and cancelling it mid-call would repeat paid
	// provider work on the next attempt.
	JobTimeout time.Duration = -1
)

// RowArgs is stored in river_job.args as JSON. It carries only the row identity;
// the prospect itself is read from the progress store.
type RowArgs struct {
	JobID    string `json:"job_id"`
	RowIndex int    `json:"row_index"`
}

// Kind returns the job kind for River registration.
func (RowArgs) Kind() string {
	return JobKind
}

// InsertOpts returns the default insert options for this job type.
func (RowArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobAttempts,
	}
}
