package model

import "time"

// ResearchCacheEntry memoizes a research payload under the normalized company name.
// Entries are rewritten wholesale, never patched.
type ResearchCacheEntry struct {
	Key       string    `gorm:"primaryKey;column:company_name_normalized;type:VARCHAR(255)"`
	Value     []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ResearchCacheEntry) TableName() string {
	return "research_cache"
}

// Fresh reports whether the entry is no older than ttl at now.
func (e ResearchCacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) <= ttl
}
