package store

import (
	"context"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Progress() Progress
	ResearchCache() ResearchCache
	Deck() Deck
	InitialMigration(ctx context.Context) error
	Statistics(ctx context.Context) (model.JobStats, error)
	Close() error
}

type DataStore struct {
	db            *gorm.DB
	progress      Progress
	researchCache ResearchCache
	deck          Deck
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:            db,
		progress:      NewProgressStore(db),
		researchCache: NewResearchCacheStore(db),
		deck:          NewDeckStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Progress() Progress {
	return s.progress
}

func (s *DataStore) ResearchCache() ResearchCache {
	return s.researchCache
}

func (s *DataStore) Deck() Deck {
	return s.deck
}

// InitialMigration creates the tables from the models. Postgres deployments
// use the goose migrations instead.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&model.Job{},
		&model.Row{},
		&model.ResearchCacheEntry{},
		&model.GeneratedDeck{},
	)
}

func (s *DataStore) Statistics(ctx context.Context) (model.JobStats, error) {
	stats := model.NewJobStats()
	db := s.db.WithContext(ctx)

	var jobCounts []struct {
		Status model.JobStatus
		Count  int
	}
	if err := db.Model(&model.Job{}).Select("status, count(*) as count").Group("status").Scan(&jobCounts).Error; err != nil {
		return stats, err
	}
	for _, c := range jobCounts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}

	var rowCounts []struct {
		Status model.RowStatus
		Count  int
	}
	if err := db.Model(&model.Row{}).Select("status, count(*) as count").Group("status").Scan(&rowCounts).Error; err != nil {
		return stats, err
	}
	for _, c := range rowCounts {
		stats.RowsByStatus[c.Status] = c.Count
	}

	var decks int64
	if err := db.Model(&model.GeneratedDeck{}).Count(&decks).Error; err != nil {
		return stats, err
	}
	stats.TotalDecks = int(decks)

	return stats, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
