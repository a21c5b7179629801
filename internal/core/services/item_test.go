package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func seedItemStore(t *testing.T) *memory.ItemStore {
	t.Helper()
	store := memory.NewItemStore()
	ctx := context.Background()
	items := []*domain.Item{
		dedupItem("a", "Ollama local model runner", "tavily", 0),
		dedupItem("b", "Ollama local model server", "github", time.Minute),
		dedupItem("c", "Vector search engine", "tavily", 0),
		dedupItem("d", "Agent orchestration toolkit", "google", 0),
	}
	items[2].Metadata.Type = domain.ItemTypePaper
	for _, item := range items {
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)
	}
	return store
}

func TestItemService_Get(t *testing.T) {
	svc := NewItemService(seedItemStore(t), nil)

	item, err := svc.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Ollama local model runner", item.Metadata.Title)

	_, err = svc.Get(context.Background(), "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestItemService_List(t *testing.T) {
	svc := NewItemService(seedItemStore(t), nil)
	ctx := context.Background()

	page, err := svc.List(ctx, "", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "d", page.Items[0].ID)

	papers, err := svc.List(ctx, domain.ItemTypePaper, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, papers.Total)
	assert.Equal(t, 1, papers.Page)
	assert.Equal(t, DefaultPageSize, papers.PageSize)

	_, err = svc.List(ctx, "podcast", 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestItemService_Similar(t *testing.T) {
	svc := NewItemService(seedItemStore(t), nil)

	similar, err := svc.Similar(context.Background(), "a", 5)
	require.NoError(t, err)
	require.NotEmpty(t, similar)
	assert.Equal(t, "b", similar[0].Item.ID)
	for _, s := range similar {
		assert.NotEqual(t, "a", s.Item.ID)
		assert.Positive(t, s.Score)
	}

	limited, err := svc.Similar(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.Similar(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
