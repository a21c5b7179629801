package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// DiscoverInput is the input schema for the discover tool.
type DiscoverInput struct {
	Query      string   `json:"query" jsonschema:"what to look for, e.g. open source code assistants"`
	Providers  []string `json:"providers,omitempty" jsonschema:"provider ids to query (default all enabled)"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"maximum results per provider"`
	Extract    *bool    `json:"extract,omitempty" jsonschema:"extract structured metadata with the LLM"`
	Tag        *bool    `json:"tag,omitempty" jsonschema:"tag items with the LLM"`
}

// DiscoverOutput is the output schema for the discover tool.
type DiscoverOutput struct {
	RunID           string            `json:"run_id"`
	Status          string            `json:"status"`
	TotalCandidates int               `json:"total_candidates"`
	ItemsNew        int               `json:"items_new"`
	ItemsMerged     int               `json:"items_merged"`
	ProviderErrors  map[string]string `json:"provider_errors,omitempty"`
	Items           []ItemOutput      `json:"items"`
}

// ItemOutput is the flattened form of an item returned by tools.
type ItemOutput struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type,omitempty"`
	Description    string   `json:"description,omitempty"`
	Authors        []string `json:"authors,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	URL            string   `json:"url"`
	Platform       string   `json:"platform"`
	RepositoryLink string   `json:"repository_link,omitempty"`
	PaperLink      string   `json:"paper_link,omitempty"`
	Capabilities   []string `json:"capabilities,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Scrapers       []string `json:"scrapers,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
}

// GetItemInput is the input schema for the get_item tool.
type GetItemInput struct {
	ID string `json:"id" jsonschema:"item id or any alias it was merged under"`
}

// GetItemOutput is the output schema for the get_item tool.
type GetItemOutput struct {
	Item ItemOutput `json:"item"`
}

// ListItemsInput is the input schema for the list_items tool.
type ListItemsInput struct {
	Type     string `json:"type,omitempty" jsonschema:"filter by type: tool, model, paper or article"`
	Page     int    `json:"page,omitempty" jsonschema:"page number starting at 1"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"items per page (default 20)"`
}

// ListItemsOutput is the output schema for the list_items tool.
type ListItemsOutput struct {
	Items    []ItemOutput `json:"items"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
}

// SimilarItemsInput is the input schema for the similar_items tool.
type SimilarItemsInput struct {
	ID    string `json:"id" jsonschema:"item id to compare against"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// SimilarItemsOutput is the output schema for the similar_items tool.
type SimilarItemsOutput struct {
	Results []ScoredItemOutput `json:"results"`
}

// ScoredItemOutput is an item with its similarity score.
type ScoredItemOutput struct {
	Item  ItemOutput `json:"item"`
	Score float64    `json:"score"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "discover",
		Description: "Search every enabled provider for AI tools, models and papers, and store the merged results",
	}, s.handleDiscover)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_item",
		Description: "Get a stored item by id or alias",
	}, s.handleGetItem)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_items",
		Description: "List stored items, newest first",
	}, s.handleListItems)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "similar_items",
		Description: "Rank stored items by similarity to a given item",
	}, s.handleSimilarItems)
}

// handleDiscover handles the discover tool invocation.
func (s *Server) handleDiscover(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiscoverInput,
) (*mcp.CallToolResult, DiscoverOutput, error) {
	cfg := s.ports.Defaults
	if len(input.Providers) > 0 {
		cfg.Providers = input.Providers
	}
	if input.MaxResults > 0 {
		cfg.MaxResults = input.MaxResults
	}
	if input.Extract != nil {
		cfg.ExtractionEnabled = *input.Extract
	}
	if input.Tag != nil {
		cfg.TaggingEnabled = *input.Tag
	}

	result, err := s.ports.Discovery.Run(ctx, input.Query, cfg)
	if err != nil {
		return nil, DiscoverOutput{}, err
	}

	output := DiscoverOutput{
		RunID:           result.RunID,
		Status:          string(result.Status),
		TotalCandidates: result.TotalCandidates,
		ItemsNew:        result.ItemsNew,
		ItemsMerged:     result.ItemsMerged,
		ProviderErrors:  result.ProviderErrors,
		Items:           toItemOutputs(result.Items),
	}
	return nil, output, nil
}

// handleGetItem handles the get_item tool invocation.
func (s *Server) handleGetItem(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetItemInput,
) (*mcp.CallToolResult, GetItemOutput, error) {
	item, err := s.ports.Items.Get(ctx, input.ID)
	if err != nil {
		return nil, GetItemOutput{}, err
	}
	return nil, GetItemOutput{Item: toItemOutput(item)}, nil
}

// handleListItems handles the list_items tool invocation.
func (s *Server) handleListItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListItemsInput,
) (*mcp.CallToolResult, ListItemsOutput, error) {
	page, err := s.ports.Items.List(ctx, domain.ItemType(input.Type), input.Page, input.PageSize)
	if err != nil {
		return nil, ListItemsOutput{}, err
	}
	return nil, ListItemsOutput{
		Items:    toItemOutputs(page.Items),
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
	}, nil
}

// handleSimilarItems handles the similar_items tool invocation.
func (s *Server) handleSimilarItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SimilarItemsInput,
) (*mcp.CallToolResult, SimilarItemsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	scored, err := s.ports.Items.Similar(ctx, input.ID, limit)
	if err != nil {
		return nil, SimilarItemsOutput{}, err
	}

	output := SimilarItemsOutput{Results: make([]ScoredItemOutput, len(scored))}
	for i, sc := range scored {
		output.Results[i] = ScoredItemOutput{Item: toItemOutput(sc.Item), Score: sc.Score}
	}
	return nil, output, nil
}

func toItemOutputs(items []*domain.Item) []ItemOutput {
	out := make([]ItemOutput, len(items))
	for i, item := range items {
		out[i] = toItemOutput(item)
	}
	return out
}

func toItemOutput(item *domain.Item) ItemOutput {
	return ItemOutput{
		ID:             item.ID,
		Title:          item.Metadata.Title,
		Type:           string(item.Metadata.Type),
		Description:    item.Metadata.Description,
		Authors:        item.Metadata.Authors,
		PublishedDate:  domain.StringValue(item.Metadata.PublishedDate),
		URL:            item.Source.URL,
		Platform:       string(item.Source.Platform),
		RepositoryLink: domain.StringValue(item.Content.RepositoryLink),
		PaperLink:      domain.StringValue(item.Content.PaperLink),
		Capabilities:   item.Content.Capabilities,
		Tags:           item.Tags,
		Scrapers:       item.Source.ScraperIDs,
		Aliases:        item.Aliases,
	}
}
