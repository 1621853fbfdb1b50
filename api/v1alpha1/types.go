// Package v1alpha1 holds the request and response bodies of the SlideSmith HTTP API.
package v1alpha1

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// JobCreated is returned when a spreadsheet upload was accepted.
type JobCreated struct {
	JobID     string    `json:"job_id"`
	TotalRows int       `json:"total_rows"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
}

type SingleProspectCreate struct {
	ClientName  string `json:"client_name" validate:"required,max=200"`
	Company     string `json:"company" validate:"required,company_name,max=200"`
	Role        string `json:"role" validate:"required,max=200"`
	LinkedInURL string `json:"linkedin_url,omitempty" validate:"omitempty,linkedin_url"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,phone"`
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type SingleProspectCreated struct {
	JobID       string    `json:"job_id"`
	CompanyName string    `json:"company_name"`
	Status      JobStatus `json:"status"`
	Message     string    `json:"message,omitempty"`
}

type RowStatus struct {
	RowIndex        int    `json:"row_index"`
	CompanyName     string `json:"company_name"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	FailedStage     string `json:"failed_stage,omitempty"`
	Attempt         int    `json:"attempt"`
	DeckURL         string `json:"deck_url"`
	PptxURL         string `json:"pptx_url"`
	Error           string `json:"error"`
	ErrorKind       string `json:"error_kind,omitempty"`
}

type JobStatusReply struct {
	JobID           string      `json:"job_id"`
	Status          JobStatus   `json:"status"`
	TotalRows       int         `json:"total_rows"`
	Completed       int         `json:"completed"`
	Failed          int         `json:"failed"`
	ProgressPercent int         `json:"progress_percent"`
	OutputFile      string      `json:"output_file"`
	Cancelled       bool        `json:"cancelled"`
	Error           string      `json:"error,omitempty"`
	Rows            []RowStatus `json:"rows"`
}

// SingleStatusReply reports the progress of the one row of a single-prospect job.
// ProgressPercent follows the stage of that row.
type SingleStatusReply struct {
	JobID           string    `json:"job_id"`
	CompanyName     string    `json:"company_name"`
	Status          JobStatus `json:"status"`
	Completed       int       `json:"completed"`
	Failed          int       `json:"failed"`
	ProgressPercent int       `json:"progress_percent"`
	CurrentStage    string    `json:"current_stage"`
	FailedStage     string    `json:"failed_stage,omitempty"`
	DeckURL         string    `json:"deck_url"`
	PptxURL         string    `json:"pptx_url"`
	Error           string    `json:"error"`
}

type DeckSummary struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	CompanyName  string    `json:"company_name"`
	ContactName  string    `json:"contact_name"`
	DeckURL      string    `json:"deck_url"`
	PptxURL      string    `json:"pptx_url"`
	GenerationID string    `json:"gamma_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type DeckDetail struct {
	DeckSummary
	Industry       string          `json:"industry,omitempty"`
	ContactTitle   string          `json:"contact_title,omitempty"`
	ResearchData   json.RawMessage `json:"research_data,omitempty"`
	PitchContent   json.RawMessage `json:"pitch_content,omitempty"`
	MappedServices json.RawMessage `json:"mapped_services,omitempty"`
}

type DeckList struct {
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Decks  []DeckSummary `json:"decks"`
}

type Theme struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type ThemeList struct {
	Themes []Theme `json:"themes"`
	Count  int     `json:"count"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}
