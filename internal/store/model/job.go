package model

import (
	"encoding/json"
	"math"
	"time"
)

type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// JobCounter names one of the two aggregate counters of a job.
type JobCounter string

const (
	JobCounterCompleted JobCounter = "completed_count"
	JobCounterFailed    JobCounter = "failed_count"
)

// Job is one batch submission. CompletedCount+FailedCount never exceeds TotalRows.
type Job struct {
	ID                string    `gorm:"primaryKey;type:VARCHAR(36)"`
	TotalRows         int       `gorm:"not null"`
	CompletedCount    int       `gorm:"not null;default:0"`
	FailedCount       int       `gorm:"not null;default:0"`
	Status            JobStatus `gorm:"type:VARCHAR(32);not null;index"`
	IsSingle          bool      `gorm:"not null;default:false"`
	OriginalFileRef   string
	OutputArtifactRef string
	Cancelled         bool `gorm:"not null;default:false"`
	FinalizeClaimed   bool `gorm:"not null;default:false"`
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (j Job) Finished() int {
	return j.CompletedCount + j.FailedCount
}

// AllRowsTerminal reports whether every row of the job has signalled its terminal state.
func (j Job) AllRowsTerminal() bool {
	return j.TotalRows > 0 && j.Finished() == j.TotalRows
}

// ProgressPercent is round(100*(completed+failed)/total), 0 for an empty job.
func (j Job) ProgressPercent() int {
	if j.TotalRows == 0 {
		return 0
	}
	return int(math.Round(100 * float64(j.Finished()) / float64(j.TotalRows)))
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
