package model

import "time"

type RowStatus string

const (
	RowStatusQueued            RowStatus = "queued"
	RowStatusResearching       RowStatus = "researching"
	RowStatusGeneratingContent RowStatus = "generating_content"
	RowStatusCreatingArtifact  RowStatus = "creating_artifact"
	RowStatusComplete          RowStatus = "complete"
	RowStatusFailed            RowStatus = "failed"
)

// forward order of the happy path
var rowStatusOrder = map[RowStatus]int{
	RowStatusQueued:            0,
	RowStatusResearching:       1,
	RowStatusGeneratingContent: 2,
	RowStatusCreatingArtifact:  3,
	RowStatusComplete:          4,
}

var rowStatusPercent = map[RowStatus]int{
	RowStatusQueued:            0,
	RowStatusResearching:       25,
	RowStatusGeneratingContent: 50,
	RowStatusCreatingArtifact:  75,
	RowStatusComplete:          100,
	RowStatusFailed:            100,
}

var TerminalRowStatuses = []RowStatus{RowStatusComplete, RowStatusFailed}

func (s RowStatus) IsTerminal() bool {
	return s == RowStatusComplete || s == RowStatusFailed
}

// CanTransitionTo allows one step forward on the happy path, Failed from any
// non-terminal status, and a reset to Researching for a whole-row retry.
// Nothing leaves a terminal status.
func (s RowStatus) CanTransitionTo(next RowStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == RowStatusFailed {
		return true
	}
	if next == RowStatusResearching && s != RowStatusQueued {
		return true
	}
	cur, ok := rowStatusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := rowStatusOrder[next]
	return ok && nxt == cur+1
}

// Percent maps a status to the stage progress shown to pollers.
func (s RowStatus) Percent() int {
	return rowStatusPercent[s]
}

type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// Row is one item's pipeline execution within a job.
type Row struct {
	JobID        string `gorm:"primaryKey;type:VARCHAR(36)"`
	RowIndex     int    `gorm:"primaryKey;autoIncrement:false"`
	CompanyName  string `gorm:"not null"`
	Industry     string
	WebsiteURL   string
	ContactName  string
	ContactTitle string
	ExtraContext string
	Status       RowStatus `gorm:"type:VARCHAR(32);not null;index"`
	// FailedStage is the last non-terminal status of a failed row.
	FailedStage RowStatus `gorm:"type:VARCHAR(32)"`
	Research    []byte    `gorm:"type:jsonb"`
	Content     []byte    `gorm:"type:jsonb"`
	ArtifactURL string
	ExportURL   string
	ArtifactID  string
	Error       string
	ErrorKind   ErrorKind `gorm:"type:VARCHAR(16)"`
	Attempt     int       `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Row) TableName() string {
	return "job_rows"
}

// RowFields is a partial row update. Nil fields are left untouched.
type RowFields struct {
	Research    []byte
	Content     []byte
	ArtifactURL *string
	ExportURL   *string
	ArtifactID  *string
	Error       *string
	ErrorKind   *ErrorKind
	FailedStage *RowStatus
	Attempt     *int
}

// Columns returns the column assignments of the set fields.
func (f RowFields) Columns() map[string]any {
	cols := map[string]any{}
	if f.Research != nil {
		cols["research"] = f.Research
	}
	if f.Content != nil {
		cols["content"] = f.Content
	}
	if f.ArtifactURL != nil {
		cols["artifact_url"] = *f.ArtifactURL
	}
	if f.ExportURL != nil {
		cols["export_url"] = *f.ExportURL
	}
	if f.ArtifactID != nil {
		cols["artifact_id"] = *f.ArtifactID
	}
	if f.Error != nil {
		cols["error"] = *f.Error
	}
	if f.ErrorKind != nil {
		cols["error_kind"] = *f.ErrorKind
	}
	if f.FailedStage != nil {
		cols["failed_stage"] = *f.FailedStage
	}
	if f.Attempt != nil {
		cols["attempt"] = *f.Attempt
	}
	return cols
}
