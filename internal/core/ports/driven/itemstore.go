package driven

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// ItemStore persists items. Stores never delete items.
type ItemStore interface {
	// Get returns the item with the given id, resolving aliases of merged
	// near-duplicates to the surviving item.
	// Returns domain.ErrNotFound if neither exists.
	Get(ctx context.Context, id string) (*domain.Item, error)

	// Upsert atomically reads the current item with the same id, folds
	// item into it with domain.MergeItems and writes the result. When no
	// item exists, item is written as-is. Aliases of the written item are
	// indexed so later lookups resolve them.
	// Returns the stored item.
	Upsert(ctx context.Context, item *domain.Item) (*domain.Item, error)

	// ListRecent returns up to limit items, most recently scraped first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Item, error)

	// List returns items matching the filter, ordered by id.
	List(ctx context.Context, filter ItemFilter) ([]*domain.Item, error)

	// Count returns the number of items matching the filter.
	Count(ctx context.Context, filter ItemFilter) (int, error)

	// Close releases resources.
	Close() error
}

// ItemFilter selects a page of items.
type ItemFilter struct {
	// Type restricts results to one item type. Empty means all.
	Type domain.ItemType

	// Offset skips this many matching items.
	Offset int

	// Limit caps the result size. Zero means no limit.
	Limit int
}

// Matches reports whether item passes the type filter.
func (f ItemFilter) Matches(item *domain.Item) bool {
	return f.Type == "" || item.Metadata.Type == f.Type
}
