package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Deck is the history of generated decks.
type Deck interface {
	Create(ctx context.Context, deck model.GeneratedDeck) (*model.GeneratedDeck, error)
	Get(ctx context.Context, id uuid.UUID) (*model.GeneratedDeck, error)
	List(ctx context.Context, filter *DeckQueryFilter, opts *DeckQueryOptions) ([]model.GeneratedDeck, error)
	Count(ctx context.Context, filter *DeckQueryFilter) (int64, error)
}

type DeckStore struct {
	db *gorm.DB
}

// Make sure we conform to Deck interface
var _ Deck = (*DeckStore)(nil)

func NewDeckStore(db *gorm.DB) Deck {
	return &DeckStore{db: db}
}

func (d *DeckStore) Create(ctx context.Context, deck model.GeneratedDeck) (*model.GeneratedDeck, error) {
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	if err := d.getDB(ctx).Create(&deck).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating deck: %w", err)
	}
	return &deck, nil
}

func (d *DeckStore) Get(ctx context.Context, id uuid.UUID) (*model.GeneratedDeck, error) {
	var deck model.GeneratedDeck
	if err := d.getDB(ctx).First(&deck, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying deck: %w", err)
	}
	return &deck, nil
}

func (d *DeckStore) List(ctx context.Context, filter *DeckQueryFilter, opts *DeckQueryOptions) ([]model.GeneratedDeck, error) {
	var decks []model.GeneratedDeck
	tx := d.getDB(ctx).Model(&decks)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&decks).Error; err != nil {
		return nil, fmt.Errorf("listing decks: %w", err)
	}
	return decks, nil
}

func (d *DeckStore) Count(ctx context.Context, filter *DeckQueryFilter) (int64, error) {
	var count int64
	tx := d.getDB(ctx).Model(&model.GeneratedDeck{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting decks: %w", err)
	}
	return count, nil
}

func (d *DeckStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return d.db.WithContext(ctx)
}
