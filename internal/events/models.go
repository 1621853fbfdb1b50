package events

import "time"

// RowEvent is emitted once per row when it reaches a terminal status.
type RowEvent struct {
	JobID       string    `json:"job_id"`
	RowIndex    int       `json:"row_index"`
	CompanyName string    `json:"company_name"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	DeckURL     string    `json:"deck_url,omitempty"`
	Attempt     int       `json:"attempt"`
	Timestamp   time.Time `json:"timestamp"`
}

// JobEvent is emitted when a job reaches a terminal status.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	TotalRows  int       `json:"total_rows"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	OutputFile string    `json:"output_file,omitempty"`
	Single     bool      `json:"single"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
