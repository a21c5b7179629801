package services

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// Ensure similarity implementations satisfy the interface.
var (
	_ driven.Similarity = (*FingerprintSimilarity)(nil)
	_ driven.Similarity = (*EmbeddingSimilarity)(nil)
)

// FingerprintSimilarity is the Jaccard index of the fingerprint tokens of
// title and description. It needs no external service and is the default.
type FingerprintSimilarity struct{}

// NewFingerprintSimilarity creates a fingerprint similarity.
func NewFingerprintSimilarity() *FingerprintSimilarity {
	return &FingerprintSimilarity{}
}

// Name identifies the method.
func (s *FingerprintSimilarity) Name() string {
	return string(domain.SimilarityFingerprint)
}

// Score returns |A ∩ B| / |A ∪ B| over the two token sets.
// Two items with no tokens at all score 0: emptiness is not evidence.
func (s *FingerprintSimilarity) Score(_ context.Context, a, b *domain.Item) (float64, error) {
	return jaccard(domain.FingerprintTokens(a.SimilarityText()), domain.FingerprintTokens(b.SimilarityText())), nil
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// embeddingCacheSize bounds the vectors kept between runs. It covers the
// default recent window many times over.
const embeddingCacheSize = 4096

// EmbeddingSimilarity scores items by the cosine similarity of the
// embeddings of their similarity text. Vectors are cached by similarity
// key in a bounded LRU, so a long-running daemon embeds each recent text
// once.
type EmbeddingSimilarity struct {
	embedder driven.EmbeddingService
	cache    *lru.Cache[string, []float32]
}

// NewEmbeddingSimilarity creates an embedding similarity.
func NewEmbeddingSimilarity(embedder driven.EmbeddingService) *EmbeddingSimilarity {
	return newEmbeddingSimilarity(embedder, embeddingCacheSize)
}

func newEmbeddingSimilarity(embedder driven.EmbeddingService, size int) *EmbeddingSimilarity {
	cache, _ := lru.New[string, []float32](size) //nolint:errcheck // size is always positive
	return &EmbeddingSimilarity{embedder: embedder, cache: cache}
}

// Name identifies the method.
func (s *EmbeddingSimilarity) Name() string {
	return string(domain.SimilarityEmbedding)
}

// Score returns the cosine similarity clamped to [0, 1].
func (s *EmbeddingSimilarity) Score(ctx context.Context, a, b *domain.Item) (float64, error) {
	if s.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	va, err := s.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.vector(ctx, b)
	if err != nil {
		return 0, err
	}
	return clamp01(cosine(va, vb)), nil
}

// Warm embeds every uncached item in one batch call.
func (s *EmbeddingSimilarity) Warm(ctx context.Context, items []*domain.Item) error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	var keys, texts []string
	seen := make(map[string]bool)
	for _, item := range items {
		key := item.SimilarityKey()
		if key == "" || seen[key] || s.cache.Contains(key) {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
		texts = append(texts, item.SimilarityText())
	}

	if len(texts) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for i, key := range keys {
		s.cache.Add(key, vectors[i])
	}
	logger.Debug("Embedded %d similarity texts with %s", len(keys), s.embedder.ModelName())
	return nil
}

// vector returns the embedding of item. An item whose similarity key is
// empty has nothing to compare and gets a nil vector, which scores 0.
func (s *EmbeddingSimilarity) vector(ctx context.Context, item *domain.Item) ([]float32, error) {
	key := item.SimilarityKey()
	if key == "" {
		return nil, nil
	}
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := s.embedder.Embed(ctx, item.SimilarityText())
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	s.cache.Add(key, v)
	return v, nil
}

// cosine returns the cosine similarity of two vectors, or 0 when either
// is empty, zero or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
