package github

import (
	"context"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// ID is the provider identifier.
const ID = "github"

// maxPerPage is the largest page the search API returns.
const maxPerPage = 100

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Provider finds repositories through the GitHub search API.
type Provider struct {
	client *Client
}

// New creates a GitHub provider from settings. The API key is optional
// and raises the search quota when set.
func New(settings domain.ProviderSettings) (*Provider, error) {
	rps := 0.0
	if v := settings.Extra["requests_per_second"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rps = f
		}
	}
	client, err := NewClient(context.Background(), ClientConfig{
		Token:             settings.APIKey,
		BaseURL:           settings.BaseURL,
		Timeout:           settings.Timeout,
		RequestsPerSecond: rps,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return ID
}

// Search finds repositories matching query. Deep searches also fetch
// each repository's README as raw content.
func (p *Provider) Search(
	ctx context.Context, query string, maxResults int, opts domain.ProviderOptions,
) ([]domain.RawHit, error) {
	if maxResults <= 0 {
		return []domain.RawHit{}, nil
	}
	perPage := maxResults
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := strings.TrimSpace(query)
	if qualifiers := strings.TrimSpace(opts.Extra["qualifiers"]); qualifiers != "" {
		q += " " + qualifiers
	}

	repos, err := p.client.SearchRepositories(ctx, q, perPage)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hits := make([]domain.RawHit, 0, len(repos))
	for _, repo := range repos {
		if len(hits) == maxResults {
			break
		}
		hit := repoHit(repo, now)
		if opts.Depth == domain.SearchDepthDeep {
			readme, err := p.client.Readme(ctx, repo.GetOwner().GetLogin(), repo.GetName())
			if err != nil {
				if ctx.Err() != nil {
					return hits, nil
				}
				logger.Debug("github: readme for %s: %v", repo.GetFullName(), err)
			}
			hit.RawContent = readme
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// repoHit converts a repository search result into a raw hit.
func repoHit(repo *gh.Repository, fetchedAt time.Time) domain.RawHit {
	meta := map[string]string{
		domain.HitMetaType: string(domain.ItemTypeTool),
	}
	if login := repo.GetOwner().GetLogin(); login != "" {
		meta[domain.HitMetaAuthors] = login
	}
	if created := repo.GetCreatedAt(); !created.IsZero() {
		meta[domain.HitMetaPublishedDate] = created.UTC().Format(time.DateOnly)
	}
	if lang := repo.GetLanguage(); lang != "" {
		meta[domain.HitMetaSpecPrefix+"language"] = lang
	}
	if stars := repo.GetStargazersCount(); stars > 0 {
		meta[domain.HitMetaSpecPrefix+"stars"] = strconv.Itoa(stars)
	}
	if license := repo.GetLicense().GetSPDXID(); license != "" && license != "NOASSERTION" {
		meta[domain.HitMetaSpecPrefix+"license"] = license
	}
	if topics := repo.Topics; len(topics) > 0 {
		meta[domain.HitMetaSpecPrefix+"topics"] = strings.Join(topics, ", ")
	}

	return domain.RawHit{
		SourceURL:     repo.GetHTMLURL(),
		Title:         repo.GetFullName(),
		Snippet:       repo.GetDescription(),
		ContentFormat: domain.ContentFormatMarkdown,
		ProviderID:    ID,
		FetchedAt:     fetchedAt,
		Metadata:      meta,
	}
}
