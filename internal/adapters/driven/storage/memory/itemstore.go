package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// Ensure ItemStore implements the interface.
var _ driven.ItemStore = (*ItemStore)(nil)

// ItemStore is an in-memory implementation of driven.ItemStore.
type ItemStore struct {
	mu      sync.RWMutex
	items   map[string]*domain.Item
	aliases map[string]string
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items:   make(map[string]*domain.Item),
		aliases: make(map[string]string),
	}
}

// Get retrieves an item by id or alias.
func (s *ItemStore) Get(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[s.resolve(id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item.Clone(), nil
}

// Upsert folds item into the stored item with the same id or alias.
func (s *ItemStore) Upsert(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item == nil || item.ID == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "item id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := item.Clone()
	if existing, ok := s.items[s.resolve(item.ID)]; ok {
		merged = domain.MergeItems(existing, item)
	}
	merged.Canonicalise()
	// match the JSON stores, which never persist guesses
	merged.Guessed = 0

	s.items[merged.ID] = merged
	for _, alias := range merged.Aliases {
		s.aliases[alias] = merged.ID
	}
	return merged.Clone(), nil
}

// ListRecent returns up to limit items, most recently scraped first.
func (s *ItemStore) ListRecent(_ context.Context, limit int) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.snapshot(driven.ItemFilter{})
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Source.ScrapeTimestamp, result[j].Source.ScrapeTimestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// List returns items matching the filter, ordered by id.
func (s *ItemStore) List(_ context.Context, filter driven.ItemFilter) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.snapshot(filter)
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*domain.Item{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of items matching the filter.
func (s *ItemStore) Count(_ context.Context, filter driven.ItemFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if filter.Matches(item) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *ItemStore) Close() error {
	return nil
}

// resolve maps an alias to its surviving id. Callers hold the lock.
func (s *ItemStore) resolve(id string) string {
	if _, ok := s.items[id]; ok {
		return id
	}
	if target, ok := s.aliases[id]; ok {
		return target
	}
	return id
}

// snapshot copies the matching items. Callers hold the lock.
func (s *ItemStore) snapshot(filter driven.ItemFilter) []*domain.Item {
	result := make([]*domain.Item, 0, len(s.items))
	for _, item := range s.items {
		if filter.Matches(item) {
			result = append(result, item.Clone())
		}
	}
	return result
}
