// Package arxiv finds papers by scraping the arXiv search results page.
package arxiv

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/providers/httpclient"
)

const (
	// ID is the provider identifier.
	ID = "arxiv"

	// DefaultBaseURL is the arXiv site.
	DefaultBaseURL = "https://arxiv.org"

	// politeRate follows arXiv's request of one call every three seconds.
	politeRate = 1.0 / 3
)

// pageSizes are the result page sizes the search form accepts.
var pageSizes = []int{25, 50, 100, 200}

var (
	submittedExpr = regexp.MustCompile(`Submitted\s+(\d{1,2} [A-Za-z]+,? \d{4})`)
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Provider queries arXiv.
type Provider struct {
	baseURL string
	client  *httpclient.Client
}

// New creates an arXiv provider. No API key is needed.
func New(settings domain.ProviderSettings) (*Provider, error) {
	baseURL := strings.TrimRight(settings.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := politeRate
	if v := settings.Extra["requests_per_second"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	return &Provider{
		baseURL: baseURL,
		client: httpclient.New(ID, httpclient.Config{
			Timeout:           settings.Timeout,
			RequestsPerSecond: rps,
			UserAgent:         "mosaic/1.0 (+https://github.com/custodia-labs/mosaic)",
		}),
	}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return ID
}

// Search returns the newest papers matching query. Deep searches carry
// the full abstract as raw content.
func (p *Provider) Search(
	ctx context.Context, query string, maxResults int, opts domain.ProviderOptions,
) ([]domain.RawHit, error) {
	if maxResults <= 0 {
		return []domain.RawHit{}, nil
	}

	body, err := p.client.Do(ctx, http.MethodGet, p.searchURL(query, maxResults, opts), nil, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewProviderError(ID, domain.ProviderErrorMalformed, err)
	}

	deep := opts.Depth == domain.SearchDepthDeep
	now := time.Now().UTC()
	hits := make([]domain.RawHit, 0, maxResults)
	doc.Find("li.arxiv-result").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		hit, ok := parseResult(li, p.baseURL)
		if !ok {
			return true
		}
		hit.FetchedAt = now
		if deep {
			hit.RawContent = hit.Snippet
			hit.ContentFormat = domain.ContentFormatText
		}
		hits = append(hits, hit)
		return len(hits) < maxResults
	})
	return hits, nil
}

func (p *Provider) searchURL(query string, maxResults int, opts domain.ProviderOptions) string {
	size := pageSizes[len(pageSizes)-1]
	for _, s := range pageSizes {
		if s >= maxResults {
			size = s
			break
		}
	}
	searchType := opts.Extra["searchtype"]
	if searchType == "" {
		searchType = "all"
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("searchtype", searchType)
	q.Set("abstracts", "show")
	q.Set("order", "-announced_date_first")
	q.Set("size", strconv.Itoa(size))
	return p.baseURL + "/search/?" + q.Encode()
}

// parseResult reads one search result entry.
func parseResult(li *goquery.Selection, baseURL string) (domain.RawHit, bool) {
	var absURL, pdfURL string
	li.Find("p.list-title a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		switch {
		case strings.Contains(href, "/abs/") && absURL == "":
			absURL = absolute(href, baseURL)
		case strings.Contains(href, "/pdf/") && pdfURL == "":
			pdfURL = absolute(href, baseURL)
		}
	})
	if absURL == "" {
		return domain.RawHit{}, false
	}

	title := collapse(li.Find("p.title").First().Text())

	var authors []string
	li.Find("p.authors a").Each(func(_ int, a *goquery.Selection) {
		if name := collapse(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	abstract := li.Find("span.abstract-full").First()
	abstract.Find("a").Remove()
	summary := collapse(abstract.Text())
	if summary == "" {
		summary = collapse(li.Find("p.abstract").First().Text())
	}
	summary = strings.TrimSpace(strings.TrimSuffix(summary, "△ Less"))

	meta := map[string]string{domain.HitMetaType: string(domain.ItemTypePaper)}
	if len(authors) > 0 {
		meta[domain.HitMetaAuthors] = strings.Join(authors, ", ")
	}
	if pdfURL != "" {
		meta[domain.HitMetaPaperLink] = pdfURL
	}
	if d := submittedDate(li.Find("p.is-size-7").Text()); d != "" {
		meta[domain.HitMetaPublishedDate] = d
	}

	return domain.RawHit{
		SourceURL:     absURL,
		Title:         title,
		Snippet:       summary,
		ContentFormat: domain.ContentFormatText,
		ProviderID:    ID,
		Metadata:      meta,
	}, true
}

// submittedDate finds "Submitted 1 May, 2025" and returns 2025-05-01.
func submittedDate(text string) string {
	m := submittedExpr.FindStringSubmatch(collapse(text))
	if m == nil {
		return ""
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	for _, layout := range []string{"2 January 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

func absolute(href, baseURL string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return baseURL + "/" + strings.TrimLeft(href, "/")
}

func collapse(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}
