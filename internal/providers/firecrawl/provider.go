// Package firecrawl searches and scrapes the web through the Firecrawl API.
package firecrawl

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
	ID = "firecrawl"

	// DefaultBaseURL is the Firecrawl API endpoint.
	DefaultBaseURL = "https://api.firecrawl.dev"

	// scrapeRate keeps well under the free-tier request limit.
	scrapeRate = 0.5
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Provider queries Firecrawl.
type Provider struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// New creates a Firecrawl provider from settings.
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
		client: httpclient.New(ID, httpclient.Config{
			Timeout:           settings.Timeout,
			RequestsPerSecond: scrapeRate,
		}),
	}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return ID
}

type scrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type searchRequest struct {
	Query         string         `json:"query"`
	Limit         int            `json:"limit"`
	Lang          string         `json:"lang,omitempty"`
	ScrapeOptions *scrapeOptions `json:"scrapeOptions,omitempty"`
}

type searchResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Data    []searchData `json:"data"`
}

type searchData struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
	Metadata    struct {
		Author        string `json:"author"`
		PublishedTime string `json:"publishedTime"`
	} `json:"metadata"`
}

// Search runs one Firecrawl search. Deep searches also scrape each
// result page as markdown.
func (p *Provider) Search(
	ctx context.Context, query string, maxResults int, opts domain.ProviderOptions,
) ([]domain.RawHit, error) {
	if maxResults <= 0 {
		return []domain.RawHit{}, nil
	}

	req := searchRequest{Query: query, Limit: maxResults, Lang: opts.Extra["lang"]}
	if opts.Depth == domain.SearchDepthDeep {
		req.ScrapeOptions = &scrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true}
	}

	var resp searchResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := p.client.PostJSON(ctx, p.baseURL+"/v1/search", headers, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "search was not successful"
		}
		return nil, domain.NewProviderError(ID, domain.ProviderErrorMalformed, errors.New(msg))
	}

	now := time.Now().UTC()
	hits := make([]domain.RawHit, 0, len(resp.Data))
	for _, d := range resp.Data {
		if len(hits) == maxResults {
			break
		}
		hit := domain.RawHit{
			SourceURL:     d.URL,
			Title:         d.Title,
			Snippet:       d.Description,
			RawContent:    d.Markdown,
			ContentFormat: domain.ContentFormatMarkdown,
			ProviderID:    ID,
			FetchedAt:     now,
			Metadata:      map[string]string{},
		}
		if d.Metadata.Author != "" {
			hit.Metadata[domain.HitMetaAuthors] = d.Metadata.Author
		}
		if d.Metadata.PublishedTime != "" {
			hit.Metadata[domain.HitMetaPublishedDate] = datePart(d.Metadata.PublishedTime)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// datePart trims an RFC 3339 timestamp to its date.
func datePart(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	return ts
}
