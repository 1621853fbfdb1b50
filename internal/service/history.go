package service

import (
	"context"
	"errors"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service/mappers"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type HistoryFilter struct {
	Limit   int
	Offset  int
	Company string
}

type HistoryService struct {
	store store.Store
}

func NewHistoryService(s store.Store) *HistoryService {
	return &HistoryService{store: s}
}

// ListDecks returns one page of generated decks, newest first.
func (h *HistoryService) ListDecks(ctx context.Context, filter HistoryFilter) (*api.DeckList, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	offset := max(filter.Offset, 0)

	storeFilter := store.NewDeckQueryFilter()
	if filter.Company != "" {
		storeFilter = storeFilter.ByCompanyLike(filter.Company)
	}

	total, err := h.store.Deck().Count(ctx, storeFilter)
	if err != nil {
		return nil, err
	}

	opts := store.NewDeckQueryOptions().
		WithSortOrder(store.SortByCreatedTime).
		WithLimit(limit).
		WithOffset(offset)
	decks, err := h.store.Deck().List(ctx, storeFilter, opts)
	if err != nil {
		return nil, err
	}

	list := mappers.DeckListToApi(decks, total, limit, offset)
	return &list, nil
}

func (h *HistoryService) GetDeck(ctx context.Context, id string) (*api.DeckDetail, error) {
	deckID, err := uuid.Parse(id)
	if err != nil {
		return nil, NewErrDeckNotFound(id)
	}

	deck, err := h.store.Deck().Get(ctx, deckID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDeckNotFound(id)
		}
		return nil, err
	}

	detail := mappers.DeckDetailToApi(*deck)
	return &detail, nil
}
