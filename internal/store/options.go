package store

import (
	"strings"

	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type SortOrder int

const (
	SortByCreatedTime SortOrder = iota
	SortByCompanyName
)

type DeckQueryFilter BaseQuerier

func NewDeckQueryFilter() *DeckQueryFilter {
	return &DeckQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *DeckQueryFilter) ByJobID(jobID string) *DeckQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("job_id = ?", jobID)
	})
	return f
}

// Filter by company name, case insensitive
func (f *DeckQueryFilter) ByCompanyLike(pattern string) *DeckQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("LOWER(company_name) LIKE ?", "%"+strings.ToLower(pattern)+"%")
	})
	return f
}

type DeckQueryOptions BaseQuerier

func NewDeckQueryOptions() *DeckQueryOptions {
	return &DeckQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *DeckQueryOptions) WithLimit(limit int) *DeckQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *DeckQueryOptions) WithOffset(offset int) *DeckQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

func (o *DeckQueryOptions) WithSortOrder(sort SortOrder) *DeckQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByCompanyName:
			return tx.Order("company_name")
		case SortByCreatedTime:
			return tx.Order("created_at DESC")
		default:
			return tx
		}
	})
	return o
}
