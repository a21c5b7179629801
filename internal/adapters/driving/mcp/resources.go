package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Mosaic resources.
	uriScheme = "mosaic://"

	// recentLimit bounds the item listing resource.
	recentLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the newest items.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "items",
		Name:        "items",
		Description: "The most recently discovered items",
		MIMEType:    "application/json",
	}, s.handleItemsResource)

	// Template for a single item record.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}",
		Name:        "item",
		Description: "The full stored record of one item",
		MIMEType:    "application/json",
	}, s.handleItemResource)
}

// handleItemsResource returns the newest items.
func (s *Server) handleItemsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	page, err := s.ports.Items.List(ctx, "", 1, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	// Build simplified item list.
	type itemInfo struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Type  string `json:"type"`
		URI   string `json:"uri"`
	}

	infos := make([]itemInfo, len(page.Items))
	for i, item := range page.Items {
		infos[i] = itemInfo{
			ID:    item.ID,
			Title: item.Metadata.Title,
			Type:  string(item.Metadata.Type),
			URI:   uriScheme + "items/" + item.ID,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleItemResource returns one stored item.
func (s *Server) handleItemResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract itemId from URI: mosaic://items/{itemId}
	id := extractItemID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Items.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return jsonResource(req.Params.URI, item)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractItemID extracts the item ID from a URI like mosaic://items/{itemId}.
func extractItemID(uri string) string {
	const prefix = uriScheme + "items/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
