// Package providers wires the built-in search backends.
//
// Each backend lives in its own sub-package and fails independently.
// The registry maps provider ids to builders so settings can name the
// providers a run uses.
package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/providers/arxiv"
	"github.com/custodia-labs/mosaic/internal/providers/firecrawl"
	"github.com/custodia-labs/mosaic/internal/providers/github"
	"github.com/custodia-labs/mosaic/internal/providers/google"
	"github.com/custodia-labs/mosaic/internal/providers/tavily"
)

// Ensure Registry implements the interface.
var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry maps provider ids to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]driven.ProviderBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]driven.ProviderBuilder)}
}

// DefaultRegistry returns a registry with every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(tavily.ID, func(s domain.ProviderSettings) (driven.Provider, error) { return tavily.New(s) })
	r.Register(firecrawl.ID, func(s domain.ProviderSettings) (driven.Provider, error) { return firecrawl.New(s) })
	r.Register(github.ID, func(s domain.ProviderSettings) (driven.Provider, error) { return github.New(s) })
	r.Register(arxiv.ID, func(s domain.ProviderSettings) (driven.Provider, error) { return arxiv.New(s) })
	r.Register(google.ID, func(s domain.ProviderSettings) (driven.Provider, error) { return google.New(s) })
	return r
}

// Register adds a builder. A later registration for the same id replaces
// the earlier one.
func (r *Registry) Register(id string, builder driven.ProviderBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = builder
}

// Build creates the provider with the given id.
func (r *Registry) Build(id string, settings domain.ProviderSettings) (driven.Provider, error) {
	r.mu.RLock()
	builder, ok := r.builders[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
	}
	p, err := builder(settings)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", id, err)
	}
	return p, nil
}

// IDs returns all registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildEnabled builds every enabled provider in settings, in id order.
// Providers that fail to build are skipped; their errors are joined into
// the returned error alongside the providers that did build.
func BuildEnabled(r driven.ProviderRegistry, settings map[string]domain.ProviderSettings) ([]driven.Provider, error) {
	ids := make([]string, 0, len(settings))
	for id, s := range settings {
		if s.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var built []driven.Provider
	var errs []error
	for _, id := range ids {
		p, err := r.Build(id, settings[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		built = append(built, p)
	}
	return built, errors.Join(errs...)
}
