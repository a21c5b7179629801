package normalisers

import (
	"sync"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/normalisers/html"
	"github.com/custodia-labs/mosaic/internal/normalisers/markdown"
	"github.com/custodia-labs/mosaic/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps content formats to normalisers.
type Registry struct {
	mu       sync.RWMutex
	byFormat map[domain.ContentFormat]driven.Normaliser
	fallback driven.Normaliser
}

// NewRegistry creates an empty registry that falls back to plain text.
func NewRegistry() *Registry {
	return &Registry{
		byFormat: make(map[domain.ContentFormat]driven.Normaliser),
		fallback: plaintext.New(),
	}
}

// DefaultRegistry returns a registry with every built-in normaliser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	return r
}

// Register adds a normaliser for each of its formats.
// A later registration for the same format replaces the earlier one.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range n.Formats() {
		r.byFormat[f] = n
	}
}

// Get returns the normaliser for format, or the plain text fallback.
func (r *Registry) Get(format domain.ContentFormat) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.byFormat[format]; ok {
		return n
	}
	return r.fallback
}
