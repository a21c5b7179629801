package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func TestServer_handleDiscover(t *testing.T) {
	ctx := context.Background()

	t.Run("returns run summary", func(t *testing.T) {
		result := domain.NewRunResult("run-1", "agents")
		result.Status = domain.RunStatusPartial
		result.TotalCandidates = 5
		result.ItemsNew = 4
		result.ItemsMerged = 1
		result.ProviderErrors["google"] = "timeout"
		result.Items = []*domain.Item{testItem("a1", "Agent kit")}

		discovery := &mockDiscoveryService{result: result}
		server, err := newTestServer(discovery, &mockItemService{})
		require.NoError(t, err)

		_, output, err := server.handleDiscover(ctx, nil, DiscoverInput{Query: "agents"})
		require.NoError(t, err)

		assert.Equal(t, "agents", discovery.query)
		assert.Equal(t, "run-1", output.RunID)
		assert.Equal(t, "partial", output.Status)
		assert.Equal(t, 5, output.TotalCandidates)
		assert.Equal(t, 4, output.ItemsNew)
		assert.Equal(t, 1, output.ItemsMerged)
		assert.Equal(t, map[string]string{"google": "timeout"}, output.ProviderErrors)
		require.Len(t, output.Items, 1)
		assert.Equal(t, "Agent kit", output.Items[0].Title)
		assert.Equal(t, "2024-05-01", output.Items[0].PublishedDate)
		assert.Equal(t, "https://github.com/example/a1", output.Items[0].RepositoryLink)
		assert.Empty(t, output.Items[0].PaperLink)
	})

	t.Run("applies input over defaults", func(t *testing.T) {
		discovery := &mockDiscoveryService{result: domain.NewRunResult("run-2", "q")}
		server, err := newTestServer(discovery, &mockItemService{})
		require.NoError(t, err)

		extract := true
		_, _, err = server.handleDiscover(ctx, nil, DiscoverInput{
			Query:      "q",
			Providers:  []string{"arxiv"},
			MaxResults: 3,
			Extract:    &extract,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"arxiv"}, discovery.lastCfg.Providers)
		assert.Equal(t, 3, discovery.lastCfg.MaxResults)
		assert.True(t, discovery.lastCfg.ExtractionEnabled)
		assert.False(t, discovery.lastCfg.TaggingEnabled)
		assert.Equal(t, domain.DefaultSimilarityThreshold, discovery.lastCfg.SimilarityThreshold)
	})

	t.Run("returns error on run failure", func(t *testing.T) {
		discovery := &mockDiscoveryService{err: domain.ErrNoProviders}
		server, err := newTestServer(discovery, &mockItemService{})
		require.NoError(t, err)

		_, _, err = server.handleDiscover(ctx, nil, DiscoverInput{Query: "q"})
		assert.ErrorIs(t, err, domain.ErrNoProviders)
	})
}

func TestServer_handleGetItem(t *testing.T) {
	ctx := context.Background()
	items := &mockItemService{items: map[string]*domain.Item{"a1": testItem("a1", "Agent kit")}}
	server, err := newTestServer(&mockDiscoveryService{}, items)
	require.NoError(t, err)

	_, output, err := server.handleGetItem(ctx, nil, GetItemInput{ID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "a1", output.Item.ID)
	assert.Equal(t, "tool", output.Item.Type)
	assert.Equal(t, []string{"agents"}, output.Item.Tags)
	assert.Equal(t, []string{"tavily"}, output.Item.Scrapers)

	_, _, err = server.handleGetItem(ctx, nil, GetItemInput{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServer_handleListItems(t *testing.T) {
	ctx := context.Background()
	items := &mockItemService{page: &domain.ItemPage{
		Items:    []*domain.Item{testItem("a1", "Agent kit"), testItem("b2", "Bench")},
		Page:     2,
		PageSize: 2,
		Total:    7,
	}}
	server, err := newTestServer(&mockDiscoveryService{}, items)
	require.NoError(t, err)

	_, output, err := server.handleListItems(ctx, nil, ListItemsInput{Type: "tool", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.ItemTypeTool, items.lastType)
	assert.Len(t, output.Items, 2)
	assert.Equal(t, 2, output.Page)
	assert.Equal(t, 7, output.Total)

	items.err = errors.New("store down")
	_, _, err = server.handleListItems(ctx, nil, ListItemsInput{})
	assert.Error(t, err)
}

func TestServer_handleSimilarItems(t *testing.T) {
	ctx := context.Background()
	items := &mockItemService{scored: []domain.ScoredItem{
		{Item: testItem("b2", "Bench"), Score: 0.8},
	}}
	server, err := newTestServer(&mockDiscoveryService{}, items)
	require.NoError(t, err)

	_, output, err := server.handleSimilarItems(ctx, nil, SimilarItemsInput{ID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, 10, items.lastN)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "b2", output.Results[0].Item.ID)
	assert.InDelta(t, 0.8, output.Results[0].Score, 1e-9)
}
