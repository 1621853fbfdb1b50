package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResearchCache interface {
	Get(ctx context.Context, key string) (*model.ResearchCacheEntry, error)
	// Put writes the entry, replacing any previous entry under the same key.
	Put(ctx context.Context, entry model.ResearchCacheEntry) error
}

type ResearchCacheStore struct {
	db *gorm.DB
}

var _ ResearchCache = (*ResearchCacheStore)(nil)

func NewResearchCacheStore(db *gorm.DB) ResearchCache {
	return &ResearchCacheStore{db: db}
}

func (r *ResearchCacheStore) Get(ctx context.Context, key string) (*model.ResearchCacheEntry, error) {
	var entry model.ResearchCacheEntry
	if err := r.getDB(ctx).First(&entry, "company_name_normalized = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying research cache: %w", err)
	}
	return &entry, nil
}

func (r *ResearchCacheStore) Put(ctx context.Context, entry model.ResearchCacheEntry) error {
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_name_normalized"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("writing research cache: %w", err)
	}
	return nil
}

func (r *ResearchCacheStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}
