package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
)

// Ensure ItemService implements the interface.
var _ driving.ItemService = (*ItemService)(nil)

// Listing defaults.
const (
	DefaultPageSize     = 20
	MaxPageSize         = 200
	DefaultSimilarLimit = 10
)

// ItemService reads persisted items.
type ItemService struct {
	store      driven.ItemStore
	similarity driven.Similarity
}

// NewItemService creates an item service. A nil similarity means
// fingerprint similarity.
func NewItemService(store driven.ItemStore, similarity driven.Similarity) *ItemService {
	if similarity == nil {
		similarity = NewFingerprintSimilarity()
	}
	return &ItemService{store: store, similarity: similarity}
}

// Get returns an item by id or alias.
func (s *ItemService) Get(ctx context.Context, id string) (*domain.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "id is required"}
	}
	return s.store.Get(ctx, id)
}

// List returns one page of items. Pages are numbered from 1.
func (s *ItemService) List(
	ctx context.Context,
	itemType domain.ItemType,
	page, pageSize int,
) (*domain.ItemPage, error) {
	if itemType != "" && !itemType.IsValid() {
		return nil, &domain.ValidationError{Field: "type", Value: string(itemType), Reason: "unknown item type"}
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	filter := driven.ItemFilter{Type: itemType}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return &domain.ItemPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Similar ranks every other stored item by similarity to the given item.
// Items scoring zero are left out.
func (s *ItemService) Similar(ctx context.Context, id string, limit int) ([]domain.ScoredItem, error) {
	ref, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultSimilarLimit
	}

	items, err := s.store.List(ctx, driven.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if w, ok := s.similarity.(warmer); ok {
		_ = w.Warm(ctx, append(items, ref))
	}

	scored := make([]domain.ScoredItem, 0, len(items))
	for _, item := range items {
		if item.ID == ref.ID {
			continue
		}
		score, err := s.similarity.Score(ctx, ref, item)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", item.ID, err)
		}
		if score > 0 {
			scored = append(scored, domain.ScoredItem{Item: item, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
