// Package storetest holds behaviour tests shared by every ItemStore.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// Base is the scrape time of the first fixture sighting.
var Base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewItem builds a minimal item seen by one scraper.
func NewItem(id, scraper string, ts time.Time) *domain.Item {
	item := &domain.Item{
		ID: id,
		Metadata: domain.Metadata{
			Title: "Item " + id,
			Type:  domain.ItemTypeTool,
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

// RunItemStore exercises an ItemStore created fresh by open for each case.
func RunItemStore(t *testing.T, open func(t *testing.T) driven.ItemStore) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		_, err := open(t).Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := open(t).Upsert(context.Background(), &domain.Item{})
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("insert then get", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		item := NewItem("a", "tavily", Base)
		item.Metadata.PublishedDate = domain.StringPtr("2025-02-01")
		item.Content.TechnicalSpecs = map[string]string{"license": "MIT"}

		saved, err := store.Upsert(ctx, item)
		require.NoError(t, err)

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, saved.Metadata, got.Metadata)
		assert.Equal(t, saved.Content, got.Content)
		assert.Equal(t, saved.Source.ScraperIDs, got.Source.ScraperIDs)
		assert.True(t, saved.Source.ScrapeTimestamp.Equal(got.Source.ScrapeTimestamp))
	})

	t.Run("upsert merges", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		_, err := store.Upsert(ctx, NewItem("a", "tavily", Base))
		require.NoError(t, err)

		update := NewItem("a", "github", Base.Add(time.Hour))
		update.Content.Capabilities = []string{"search"}
		saved, err := store.Upsert(ctx, update)
		require.NoError(t, err)

		assert.Equal(t, []string{"github", "tavily"}, saved.Source.ScraperIDs)
		assert.Equal(t, []string{"search"}, saved.Content.Capabilities)
		assert.True(t, saved.FirstSeen().Equal(Base))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, saved.Source.ScraperIDs, got.Source.ScraperIDs)
	})

	t.Run("aliases resolve", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		item := NewItem("winner", "tavily", Base)
		item.Aliases = []string{"loser"}
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)

		got, err := store.Get(ctx, "loser")
		require.NoError(t, err)
		assert.Equal(t, "winner", got.ID)

		// An upsert addressed to the alias folds into the survivor
		saved, err := store.Upsert(ctx, NewItem("loser", "github", Base.Add(time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, "winner", saved.ID)
		assert.Contains(t, saved.Source.ScraperIDs, "github")

		n, err := store.Count(ctx, driven.ItemFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("list recent", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		for i, id := range []string{"old", "new", "mid"} {
			_, err := store.Upsert(ctx, NewItem(id, "tavily", Base.Add(time.Duration([]int{0, 2, 1}[i])*time.Hour)))
			require.NoError(t, err)
		}

		recent, err := store.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "new", recent[0].ID)
		assert.Equal(t, "mid", recent[1].ID)

		all, err := store.ListRecent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("list and count with filter", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		for i := 0; i < 5; i++ {
			item := NewItem(fmt.Sprintf("item-%d", i), "arxiv", Base)
			if i%2 == 0 {
				item.Metadata.Type = domain.ItemTypePaper
			}
			_, err := store.Upsert(ctx, item)
			require.NoError(t, err)
		}

		papers := driven.ItemFilter{Type: domain.ItemTypePaper}
		n, err := store.Count(ctx, papers)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		page, err := store.List(ctx, driven.ItemFilter{Type: domain.ItemTypePaper, Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "item-2", page[0].ID)

		rest, err := store.List(ctx, driven.ItemFilter{Offset: 3})
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Equal(t, "item-3", rest[0].ID)

		none, err := store.List(ctx, driven.ItemFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("concurrent upserts keep every sighting", func(t *testing.T) {
		store, ctx := open(t), context.Background()
		scrapers := []string{"arxiv", "firecrawl", "github", "google", "tavily"}

		var wg sync.WaitGroup
		for i, s := range scrapers {
			wg.Add(1)
			go func(i int, scraper string) {
				defer wg.Done()
				_, err := store.Upsert(ctx, NewItem("shared", scraper, Base.Add(time.Duration(i)*time.Minute)))
				assert.NoError(t, err)
			}(i, s)
		}
		wg.Wait()

		got, err := store.Get(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, scrapers, got.Source.ScraperIDs)
		assert.Len(t, got.Source.Provenance, len(scrapers))
	})
}
