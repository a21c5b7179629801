// Package google searches the web through Google Programmable Search.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/providers/httpclient"
)

const (
	// ID is the provider identifier.
	ID = "google"

	// pageSize is the most results one call returns.
	pageSize = 10

	// maxStart is the last result index the API serves.
	maxStart = 91
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Provider queries a Programmable Search Engine.
type Provider struct {
	svc     *customsearch.Service
	cx      string
	limiter *rate.Limiter
}

// New creates a Google provider. Settings need an API key and the
// search engine id in Extra["cx"].
func New(settings domain.ProviderSettings) (*Provider, error) {
	if settings.APIKey == "" {
		return nil, domain.NewProviderError(ID, domain.ProviderErrorAuth, errors.New("api key is required"))
	}
	cx := settings.Extra["cx"]
	if cx == "" {
		return nil, domain.NewProviderError(ID, domain.ProviderErrorAuth, errors.New("search engine id (cx) is required"))
	}

	opts := []option.ClientOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(settings.BaseURL, "/")+"/"))
	}

	svc, err := customsearch.NewService(context.Background(), opts...)
	if err != nil {
		return nil, domain.NewProviderError(ID, domain.ProviderErrorUnknown, err)
	}
	return &Provider{
		svc:     svc,
		cx:      cx,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return ID
}

// Search pages through results until maxResults are collected or the
// engine runs out.
func (p *Provider) Search(
	ctx context.Context, query string, maxResults int, opts domain.ProviderOptions,
) ([]domain.RawHit, error) {
	hits := make([]domain.RawHit, 0, maxResults)
	now := time.Now().UTC()

	for start := int64(1); len(hits) < maxResults && start <= maxStart; start += pageSize {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, WrapError(err)
		}

		num := maxResults - len(hits)
		if num > pageSize {
			num = pageSize
		}
		call := p.svc.Cse.List().Q(query).Cx(p.cx).Num(int64(num)).Start(start).Context(ctx)
		if restrict := opts.Extra["date_restrict"]; restrict != "" {
			call = call.DateRestrict(restrict)
		}

		res, err := call.Do()
		if err != nil {
			return nil, WrapError(err)
		}
		for _, r := range res.Items {
			if len(hits) == maxResults {
				break
			}
			hits = append(hits, resultHit(r, now))
		}
		if len(res.Items) < num {
			break
		}
	}
	return hits, nil
}

// pagemap is the subset of the structured data Google attaches to results.
type pagemap struct {
	Metatags []map[string]string `json:"metatags"`
}

func resultHit(r *customsearch.Result, fetchedAt time.Time) domain.RawHit {
	hit := domain.RawHit{
		SourceURL:     r.Link,
		Title:         r.Title,
		Snippet:       r.Snippet,
		ContentFormat: domain.ContentFormatText,
		ProviderID:    ID,
		FetchedAt:     fetchedAt,
		Metadata:      map[string]string{},
	}

	var pm pagemap
	if len(r.Pagemap) == 0 || json.Unmarshal(r.Pagemap, &pm) != nil || len(pm.Metatags) == 0 {
		return hit
	}
	tags := pm.Metatags[0]
	if desc := tags["og:description"]; desc != "" && len(desc) > len(hit.Snippet) {
		hit.RawContent = desc
	}
	if author := firstOf(tags, "author", "article:author"); author != "" && !strings.HasPrefix(author, "http") {
		hit.Metadata[domain.HitMetaAuthors] = author
	}
	if published := firstOf(tags, "article:published_time", "citation_publication_date", "date"); published != "" {
		hit.Metadata[domain.HitMetaPublishedDate] = datePart(published)
	}
	return hit
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func datePart(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	if len(ts) >= 10 {
		if t, err := time.Parse(time.DateOnly, ts[:10]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ts
}

// WrapError converts a Google API error into a classified provider error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := httpclient.ClassifyStatus(gerr.Code)
		// quota exhaustion arrives as 403 with a *LimitExceeded reason
		for _, item := range gerr.Errors {
			if strings.HasSuffix(strings.ToLower(item.Reason), "limitexceeded") {
				kind = domain.ProviderErrorRateLimit
			}
		}
		return &domain.ProviderError{ProviderID: ID, Kind: kind, StatusCode: gerr.Code, Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewProviderError(ID, domain.ProviderErrorTimeout, err)
	}
	return domain.NewProviderError(ID, domain.ProviderErrorNetwork, err)
}
