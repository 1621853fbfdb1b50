package model

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedDeck is the history record kept for every completed row.
type GeneratedDeck struct {
	ID             uuid.UUID `gorm:"primaryKey;type:VARCHAR(36)"`
	JobID          string    `gorm:"type:VARCHAR(36);index;not null"`
	RowIndex       int
	CompanyName    string `gorm:"not null;index"`
	Industry       string
	ContactName    string
	ContactTitle   string
	DeckURL        string
	ExportURL      string
	GenerationID   string
	Research       []byte `gorm:"type:jsonb"`
	Content        []byte `gorm:"type:jsonb"`
	MappedServices []byte `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (GeneratedDeck) TableName() string {
	return "generated_decks"
}
