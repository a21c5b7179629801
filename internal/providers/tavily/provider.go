// Package tavily searches the web through the Tavily search API.
package tavily

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/providers/httpclient"
)

const (
	// ID is the provider identifier.
	ID = "tavily"

	// DefaultBaseURL is the Tavily API endpoint.
	DefaultBaseURL = "https://api.tavily.com"

	// maxPerRequest is the largest max_results Tavily accepts.
	maxPerRequest = 20
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Provider queries Tavily.
type Provider struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// New creates a Tavily provider from settings.
func New(settings domain.ProviderSettings) (*Provider, error) {
	if settings.APIKey == "" {
		return nil, domain.NewProviderError(ID, domain.ProviderErrorAuth, errors.New("api key is required"))
	}
	baseURL := strings.TrimRight(settings.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		apiKey:  settings.APIKey,
		baseURL: baseURL,
		client:  httpclient.New(ID, httpclient.Config{Timeout: settings.Timeout}),
	}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return ID
}

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
	Topic             string `json:"topic,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search runs one Tavily query. Deep searches use advanced depth and
// request the page body.
func (p *Provider) Search(
	ctx context.Context, query string, maxResults int, opts domain.ProviderOptions,
) ([]domain.RawHit, error) {
	if maxResults <= 0 {
		return []domain.RawHit{}, nil
	}
	if maxResults > maxPerRequest {
		maxResults = maxPerRequest
	}

	deep := opts.Depth == domain.SearchDepthDeep
	req := searchRequest{
		Query:             query,
		SearchDepth:       "basic",
		MaxResults:        maxResults,
		IncludeRawContent: deep,
		Topic:             opts.Extra["topic"],
	}
	if deep {
		req.SearchDepth = "advanced"
	}

	var resp searchResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := p.client.PostJSON(ctx, p.baseURL+"/search", headers, req, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hits := make([]domain.RawHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(hits) == maxResults {
			break
		}
		hit := domain.RawHit{
			SourceURL:     r.URL,
			Title:         r.Title,
			Snippet:       r.Content,
			RawContent:    r.RawContent,
			ContentFormat: domain.ContentFormatMarkdown,
			ProviderID:    ID,
			FetchedAt:     now,
			Metadata:      map[string]string{},
		}
		if r.PublishedDate != "" {
			hit.Metadata[domain.HitMetaPublishedDate] = r.PublishedDate
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
