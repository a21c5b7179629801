package driven

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// Similarity scores how alike two items are, in [0, 1].
// Implementations must be symmetric and deterministic.
type Similarity interface {
	// Name identifies the method in logs.
	Name() string

	// Score returns 1 for identical items and 0 for unrelated ones.
	Score(ctx context.Context, a, b *domain.Item) (float64, error)
}
