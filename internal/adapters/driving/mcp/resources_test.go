package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func TestExtractItemID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid item URI",
			uri:      "mosaic://items/abc123",
			expected: "abc123",
		},
		{
			name:     "invalid prefix",
			uri:      "file://items/abc123",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "mosaic://items/abc/extra",
			expected: "",
		},
		{
			name:     "listing URI",
			uri:      "mosaic://items",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractItemID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleItemsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns newest items", func(t *testing.T) {
		items := &mockItemService{page: &domain.ItemPage{
			Items: []*domain.Item{testItem("a1", "Agent kit")},
			Page:  1,
			Total: 1,
		}}
		server, err := newTestServer(&mockDiscoveryService{}, items)
		require.NoError(t, err)

		result, err := server.handleItemsResource(ctx, makeReadResourceRequest("mosaic://items"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, recentLimit, items.lastN)
		assert.Contains(t, result.Contents[0].Text, `"id": "a1"`)
		assert.Contains(t, result.Contents[0].Text, "mosaic://items/a1")
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("handles empty store", func(t *testing.T) {
		server, err := newTestServer(&mockDiscoveryService{}, &mockItemService{})
		require.NoError(t, err)

		result, err := server.handleItemsResource(ctx, makeReadResourceRequest("mosaic://items"))
		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		server, err := newTestServer(&mockDiscoveryService{}, &mockItemService{err: errors.New("database error")})
		require.NoError(t, err)

		_, err = server.handleItemsResource(ctx, makeReadResourceRequest("mosaic://items"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing items")
	})
}

func TestServer_handleItemResource(t *testing.T) {
	ctx := context.Background()
	items := &mockItemService{items: map[string]*domain.Item{"a1": testItem("a1", "Agent kit")}}
	server, err := newTestServer(&mockDiscoveryService{}, items)
	require.NoError(t, err)

	t.Run("returns the stored record", func(t *testing.T) {
		result, err := server.handleItemResource(ctx, makeReadResourceRequest("mosaic://items/a1"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"assigned_tags"`)
		assert.Contains(t, result.Contents[0].Text, `"title": "Agent kit"`)
	})

	t.Run("unknown item is not found", func(t *testing.T) {
		_, err := server.handleItemResource(ctx, makeReadResourceRequest("mosaic://items/zz"))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "getting item")
	})

	t.Run("invalid URI is not found", func(t *testing.T) {
		_, err := server.handleItemResource(ctx, makeReadResourceRequest("mosaic://other/a1"))
		require.Error(t, err)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		broken, err := newTestServer(&mockDiscoveryService{}, &mockItemService{err: errors.New("disk")})
		require.NoError(t, err)
		_, err = broken.handleItemResource(ctx, makeReadResourceRequest("mosaic://items/a1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting item")
	})
}
