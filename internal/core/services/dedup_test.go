package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// --- Mock implementations for dedup testing ---

// dedupFailingStore fails lookups and listings on demand.
type dedupFailingStore struct {
	*memory.ItemStore
	getErr  map[string]error
	listErr error
}

func (s *dedupFailingStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	if err, ok := s.getErr[id]; ok {
		return nil, err
	}
	return s.ItemStore.Get(ctx, id)
}

func (s *dedupFailingStore) ListRecent(ctx context.Context, limit int) ([]*domain.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.ItemStore.ListRecent(ctx, limit)
}

// dedupFailingSimilarity always errors.
type dedupFailingSimilarity struct{}

func (dedupFailingSimilarity) Name() string { return "broken" }
func (dedupFailingSimilarity) Score(context.Context, *domain.Item, *domain.Item) (float64, error) {
	return 0, errors.New("similarity down")
}

var dedupBase = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func dedupItem(id, title, scraper string, offset time.Duration) *domain.Item {
	ts := dedupBase.Add(offset)
	item := &domain.Item{
		ID: id,
		Metadata: domain.Metadata{
			Title:       title,
			Type:        domain.ItemTypeTool,
			Description: title + " description",
		},
		Source: domain.Source{
			URL:             "https://example.com/" + id,
			Platform:        domain.PlatformWeb,
			ScrapeTimestamp: ts,
			ScraperIDs:      []string{scraper},
			Provenance:      []domain.Provenance{{ScraperID: scraper, Timestamp: ts}},
		},
	}
	item.EnsureCollections()
	return item
}

func newTestDeduplicator(store *memory.ItemStore) *Deduplicator {
	return NewDeduplicator(store, nil, DedupConfig{Threshold: 0.92, RecentWindow: 50})
}

func itemIDs(items []*domain.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func TestDeduplicate_Empty(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	result, err := d.Deduplicate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Merged)
}

func TestDeduplicate_AllNew(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	candidates := []*domain.Item{
		dedupItem("b", "Vector search engine", "tavily", 0),
		dedupItem("a", "Agent orchestration toolkit", "tavily", 0),
	}

	result, err := d.Deduplicate(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, result.New)
	assert.Zero(t, result.Merged)
	assert.Equal(t, []string{"a", "b"}, itemIDs(result.Items))
	assert.Equal(t, domain.OutcomeNew, result.Outcomes["a"])
}

func TestDeduplicate_SameIDFolded(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	first := dedupItem("a", "LangChain", "tavily", 0)
	second := dedupItem("a", "LangChain", "github", time.Minute)
	second.Content.Capabilities = []string{"agents"}

	result, err := d.Deduplicate(context.Background(), []*domain.Item{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Merged)
	require.Len(t, result.Items, 1)
	assert.Equal(t, []string{"github", "tavily"}, result.Items[0].Source.ScraperIDs)
	assert.Equal(t, []string{"agents"}, result.Items[0].Content.Capabilities)
}

func TestDeduplicate_ExactStoreMatch(t *testing.T) {
	store := memory.NewItemStore()
	ctx := context.Background()
	_, err := store.Upsert(ctx, dedupItem("a", "LangChain", "tavily", 0))
	require.NoError(t, err)

	d := newTestDeduplicator(store)
	result, err := d.Deduplicate(ctx, []*domain.Item{dedupItem("a", "LangChain", "github", time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, result.New)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, domain.OutcomeMerged, result.Outcomes["a"])
	require.Len(t, result.Items, 1)
	assert.Equal(t, []string{"github", "tavily"}, result.Items[0].Source.ScraperIDs)
	assert.Equal(t, dedupBase, result.Items[0].FirstSeen())
}

func TestDeduplicate_AliasResolvesToSurvivor(t *testing.T) {
	store := memory.NewItemStore()
	ctx := context.Background()
	survivor := domain.MergeItems(
		dedupItem("a", "LangChain", "tavily", 0),
		dedupItem("b", "LangChain", "github", time.Minute),
	)
	_, err := store.Upsert(ctx, survivor)
	require.NoError(t, err)

	d := newTestDeduplicator(store)
	result, err := d.Deduplicate(ctx, []*domain.Item{dedupItem("b", "LangChain", "arxiv", time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "a", result.Items[0].ID)
	assert.True(t, result.Items[0].HasScraper("arxiv"))
}

func TestDeduplicate_NearDuplicatesAmongCandidates(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	later := dedupItem("a", "Ollama local model runner", "tavily", time.Minute)
	earlier := dedupItem("z", "Ollama local model runner", "github", 0)

	result, err := d.Deduplicate(context.Background(), []*domain.Item{later, earlier})
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Merged)
	require.Len(t, result.Items, 1)

	// The first sighting survives regardless of id order
	assert.Equal(t, "z", result.Items[0].ID)
	assert.Equal(t, []string{"a"}, result.Items[0].Aliases)
	assert.Equal(t, domain.OutcomeNew, result.Outcomes["z"])
	assert.Equal(t, domain.OutcomeMerged, result.Outcomes["a"])
}

func TestDeduplicate_NearDuplicateTieGoesToSmallerID(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	result, err := d.Deduplicate(context.Background(), []*domain.Item{
		dedupItem("m", "Ollama local model runner", "tavily", 0),
		dedupItem("c", "Ollama local model runner", "github", 0),
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "c", result.Items[0].ID)
}

func TestDeduplicate_NearDuplicateOfStoredItem(t *testing.T) {
	store := memory.NewItemStore()
	ctx := context.Background()
	_, err := store.Upsert(ctx, dedupItem("stored", "Ollama local model runner", "tavily", 0))
	require.NoError(t, err)

	d := newTestDeduplicator(store)
	result, err := d.Deduplicate(ctx, []*domain.Item{
		dedupItem("fresh", "Ollama local model runner", "github", time.Hour),
	})
	require.NoError(t, err)
	assert.Zero(t, result.New)
	assert.Equal(t, 1, result.Merged)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "stored", result.Items[0].ID)
	assert.Equal(t, []string{"fresh"}, result.Items[0].Aliases)
}

func TestDeduplicate_BelowThresholdStaysSeparate(t *testing.T) {
	d := newTestDeduplicator(memory.NewItemStore())
	result, err := d.Deduplicate(context.Background(), []*domain.Item{
		dedupItem("a", "Ollama local model runner", "tavily", 0),
		dedupItem("b", "Ollama cloud model hosting", "github", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.New)
	assert.Len(t, result.Items, 2)
}

func TestDeduplicate_OrderInsensitive(t *testing.T) {
	build := func() []*domain.Item {
		return []*domain.Item{
			dedupItem("a", "Ollama local model runner", "tavily", time.Minute),
			dedupItem("b", "Ollama local model runner", "github", 0),
			dedupItem("c", "Vector search engine", "tavily", 0),
			dedupItem("c", "Vector search engine", "arxiv", time.Second),
			dedupItem("d", "Agent orchestration toolkit", "google", 0),
		}
	}
	forward := build()
	reversed := build()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	ctx := context.Background()
	r1, err := newTestDeduplicator(memory.NewItemStore()).Deduplicate(ctx, forward)
	require.NoError(t, err)
	r2, err := newTestDeduplicator(memory.NewItemStore()).Deduplicate(ctx, reversed)
	require.NoError(t, err)

	assert.Equal(t, r1.Items, r2.Items)
	assert.Equal(t, r1.Outcomes, r2.Outcomes)
	assert.Equal(t, 3, r1.New)
	assert.Equal(t, 2, r1.Merged)
}

func TestDeduplicate_IdempotentAfterPersist(t *testing.T) {
	store := memory.NewItemStore()
	ctx := context.Background()
	d := newTestDeduplicator(store)
	build := func() []*domain.Item {
		return []*domain.Item{
			dedupItem("a", "Ollama local model runner", "tavily", time.Minute),
			dedupItem("b", "Ollama local model runner", "github", 0),
			dedupItem("c", "Vector search engine", "tavily", 0),
		}
	}

	first, err := d.Deduplicate(ctx, build())
	require.NoError(t, err)
	for _, item := range first.Items {
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)
	}

	second, err := d.Deduplicate(ctx, build())
	require.NoError(t, err)
	assert.Zero(t, second.New)
	assert.Equal(t, 3, second.Merged)

	for _, item := range second.Items {
		stored, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, item)
	}
}

func TestDeduplicate_LookupErrorExcludesCandidate(t *testing.T) {
	store := &dedupFailingStore{
		ItemStore: memory.NewItemStore(),
		getErr:    map[string]error{"a": errors.New("disk on fire")},
	}
	d := NewDeduplicator(store, nil, DedupConfig{Threshold: 0.92, RecentWindow: 10})

	result, err := d.Deduplicate(context.Background(), []*domain.Item{
		dedupItem("a", "Ollama local model runner", "tavily", 0),
		dedupItem("b", "Vector search engine", "tavily", 0),
	})
	require.NoError(t, err)
	assert.Contains(t, result.LookupErrors["a"], "disk on fire")
	assert.Equal(t, 1, result.New)
	assert.Equal(t, []string{"b"}, itemIDs(result.Items))
}

func TestDeduplicate_RecentListingFailureWarns(t *testing.T) {
	store := &dedupFailingStore{
		ItemStore: memory.NewItemStore(),
		listErr:   errors.New("timeout"),
	}
	d := NewDeduplicator(store, nil, DedupConfig{Threshold: 0.92, RecentWindow: 10})

	result, err := d.Deduplicate(context.Background(), []*domain.Item{dedupItem("a", "x", "tavily", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "timeout")
}

func TestDeduplicate_SimilarityFailureFallsBack(t *testing.T) {
	d := NewDeduplicator(memory.NewItemStore(), dedupFailingSimilarity{}, DedupConfig{Threshold: 0.92})

	result, err := d.Deduplicate(context.Background(), []*domain.Item{
		dedupItem("a", "Ollama local model runner", "tavily", 0),
		dedupItem("b", "Ollama local model runner", "github", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Merged)
	assert.Len(t, result.Warnings, 1)
}

func TestDeduplicate_CountsBalance(t *testing.T) {
	store := memory.NewItemStore()
	ctx := context.Background()
	_, err := store.Upsert(ctx, dedupItem("s", "Stored research paper", "arxiv", 0))
	require.NoError(t, err)

	candidates := []*domain.Item{
		dedupItem("s", "Stored research paper", "google", time.Hour),
		dedupItem("a", "Ollama local model runner", "tavily", 0),
		dedupItem("a", "Ollama local model runner", "github", 0),
		dedupItem("b", "Ollama local model runner", "firecrawl", time.Minute),
		dedupItem("c", "Vector search engine", "tavily", 0),
	}
	result, err := newTestDeduplicator(store).Deduplicate(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, len(candidates), result.New+result.Merged)
	assert.Equal(t, 2, result.New)
	assert.Equal(t, 3, result.Merged)
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(3, 4)
	uf.union(4, 1)
	assert.Equal(t, 1, uf.find(3))
	assert.Equal(t, uf.find(1), uf.find(4))
	assert.NotEqual(t, uf.find(0), uf.find(1))
}
