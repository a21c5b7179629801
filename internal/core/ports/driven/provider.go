package driven

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// Provider queries one external search backend.
// Each provider fails independently; a failure never affects its siblings.
type Provider interface {
	// ID returns the provider identifier recorded in source.scraper_id.
	ID() string

	// Search returns at most maxResults hits for query.
	// Failures are returned as *domain.ProviderError.
	Search(ctx context.Context, query string, maxResults int, opts domain.ProviderOptions) ([]domain.RawHit, error)
}

// ProviderBuilder creates a Provider from its settings.
type ProviderBuilder func(settings domain.ProviderSettings) (Provider, error)

// ProviderRegistry knows every provider type and builds configured instances.
type ProviderRegistry interface {
	// Register adds a builder for the given provider id.
	Register(id string, builder ProviderBuilder)

	// Build creates the provider with the given id.
	// Returns ErrUnknownProvider if no builder is registered.
	Build(id string, settings domain.ProviderSettings) (Provider, error)

	// IDs returns all registered provider ids, sorted.
	IDs() []string
}
