package driven

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// Extractor pulls structured attributes out of unstructured text.
// This is an optional service - when nil, items keep the normaliser defaults.
type Extractor interface {
	// Extract returns the attributes of schema found in text.
	// Failures are returned as *domain.ExtractionError.
	Extract(ctx context.Context, text string, schema domain.ContentSchema) (*domain.PartialContent, error)
}

// Tagger assigns taxonomy tags to item text.
// This is an optional service - when nil, items carry no tags.
type Tagger interface {
	// Tag returns tags from the taxonomy that describe text.
	Tag(ctx context.Context, text string) ([]string, error)
}
