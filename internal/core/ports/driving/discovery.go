package driving

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// DiscoveryService runs the multi-source discovery pipeline.
type DiscoveryService interface {
	// Run fans query out to the configured providers, normalises, extracts,
	// deduplicates and persists the results. A non-nil result is returned
	// for every run that started, including failed ones.
	Run(ctx context.Context, query string, cfg domain.RunConfig) (*domain.RunResult, error)

	// Status returns live progress for an active run.
	// Returns domain.ErrNotFound once the run has finished.
	Status(ctx context.Context, runID string) (*domain.RunProgress, error)

	// Active returns progress for every run in flight.
	Active() []domain.RunProgress

	// Providers returns the ids of every provider a run may use.
	Providers() []string
}

// BatchService runs discovery over a list of topics.
type BatchService interface {
	// RunTopics runs one discovery per topic, pausing between topics.
	// The summary is returned even when some topics fail.
	RunTopics(ctx context.Context, topics []string, opts domain.BatchOptions) (*domain.BatchSummary, error)
}

// ItemService reads persisted items.
type ItemService interface {
	// Get returns an item by id or alias.
	Get(ctx context.Context, id string) (*domain.Item, error)

	// List returns one page of items, optionally filtered by type.
	List(ctx context.Context, itemType domain.ItemType, page, pageSize int) (*domain.ItemPage, error)

	// Similar returns stored items ranked by similarity to the given item.
	Similar(ctx context.Context, id string, limit int) ([]domain.ScoredItem, error)
}
