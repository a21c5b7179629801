package hit

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/normalisers/plaintext"
)

// descriptionLimit bounds descriptions derived from page text.
const descriptionLimit = 500

// untitled is the title of a hit with neither a title nor a URL.
const untitled = "Untitled"

// Ensure Normaliser implements the interface.
var _ driven.HitNormaliser = (*Normaliser)(nil)

// Normaliser builds items from raw hits.
type Normaliser struct {
	registry driven.NormaliserRegistry
	now      func() time.Time
}

// New creates a hit normaliser that cleans raw content through registry.
func New(registry driven.NormaliserRegistry) *Normaliser {
	return &Normaliser{registry: registry, now: time.Now}
}

// Text returns the cleaned text of raw, falling back to the snippet.
func (n *Normaliser) Text(raw domain.RawHit) string {
	if text := n.clean(raw).Text; text != "" {
		return text
	}
	return plaintext.CollapseWhitespace(raw.Snippet)
}

func (n *Normaliser) clean(raw domain.RawHit) driven.NormalisedContent {
	if strings.TrimSpace(raw.RawContent) == "" {
		return driven.NormalisedContent{}
	}
	return n.registry.Get(raw.ContentFormat).Normalise(raw.RawContent)
}

// Normalise builds an item from raw. Extracted attributes, when present,
// override the defaults derived from the hit itself.
func (n *Normaliser) Normalise(raw domain.RawHit, extracted *domain.PartialContent) (*domain.Item, error) {
	providerID := strings.TrimSpace(raw.ProviderID)
	if providerID == "" {
		return nil, &domain.ValidationError{Field: "provider_id", Reason: "missing"}
	}

	content := n.clean(raw)
	rawTitle := plaintext.CollapseWhitespace(raw.Title)
	snippet := plaintext.CollapseWhitespace(raw.Snippet)

	item := &domain.Item{}

	rawURL := strings.TrimSpace(raw.SourceURL)
	if rawURL != "" {
		canonical, err := CanonicalURL(rawURL)
		if err != nil {
			return nil, &domain.ValidationError{Field: "source_url", Value: rawURL, Reason: err.Error()}
		}
		u, _ := url.Parse(canonical)

		item.ID = ItemID(canonical)
		item.Source.URL = canonical
		item.Source.Platform = InferPlatform(u.Host)
		item.Metadata.Type = inferType(u.Host, item.Source.Platform)
		item.Metadata.Title = firstNonEmpty(rawTitle, content.Title)
		if item.Metadata.Title == "" {
			item.Metadata.Title = titleFromURL(u)
			item.Guessed |= domain.GuessedTitle
		}
		switch item.Source.Platform {
		case domain.PlatformGitHub:
			item.Content.RepositoryLink = domain.StringPtr(repositoryRoot(u))
		case domain.PlatformArxiv:
			item.Content.PaperLink = domain.StringPtr(canonical)
		}
	} else {
		body := firstNonEmpty(content.Text, snippet)
		if rawTitle == "" && body == "" {
			return nil, &domain.ValidationError{Field: "source_url", Reason: "missing, and the hit has no title or content"}
		}
		item.ID = ContentID(rawTitle, body)
		item.Source.Platform = domain.PlatformWeb
		item.Metadata.Type = domain.ItemTypeArticle
		item.Metadata.Title = firstNonEmpty(rawTitle, content.Title)
		if item.Metadata.Title == "" {
			item.Metadata.Title = untitled
			item.Guessed |= domain.GuessedTitle
		}
	}
	item.Guessed |= domain.GuessedType

	item.Metadata.Description = firstNonEmpty(snippet, truncate(content.Text, descriptionLimit))
	item.Content.CodeSnippets = content.CodeSnippets
	item.Content.Images = content.Images

	ts := raw.FetchedAt
	if ts.IsZero() {
		ts = n.now()
	}
	ts = ts.UTC()
	item.Source.ScrapeTimestamp = ts
	item.Source.ScraperIDs = []string{providerID}
	item.Source.Provenance = []domain.Provenance{{ScraperID: providerID, Timestamp: ts}}

	item.EnsureCollections()
	applyHitMetadata(item, raw.Metadata)
	applyExtracted(item, extracted)
	item.Canonicalise()
	return item, nil
}

// applyHitMetadata copies facts the provider already knows.
func applyHitMetadata(item *domain.Item, meta map[string]string) {
	for key, value := range meta {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch {
		case key == domain.HitMetaAuthors:
			item.Metadata.Authors = splitList(value)
		case key == domain.HitMetaPublishedDate:
			item.Metadata.PublishedDate = domain.StringPtr(value)
		case key == domain.HitMetaType:
			if t := domain.ItemType(value); t.IsValid() {
				item.Metadata.Type = t
				item.Guessed &^= domain.GuessedType
			}
		case key == domain.HitMetaPaperLink:
			if isHTTPURL(value) {
				item.Content.PaperLink = domain.StringPtr(value)
			}
		case strings.HasPrefix(key, domain.HitMetaSpecPrefix):
			item.Content.TechnicalSpecs[strings.TrimPrefix(key, domain.HitMetaSpecPrefix)] = value
		}
	}
}

// applyExtracted overrides defaults with every non-empty extracted value.
func applyExtracted(item *domain.Item, p *domain.PartialContent) {
	if p == nil {
		return
	}
	if t := strings.TrimSpace(p.Title); t != "" {
		item.Metadata.Title = t
		item.Guessed &^= domain.GuessedTitle
	}
	if p.Type.IsValid() {
		item.Metadata.Type = p.Type
		item.Guessed &^= domain.GuessedType
	}
	if authors := nonEmpty(p.Authors); len(authors) > 0 {
		item.Metadata.Authors = authors
	}
	if d := strings.TrimSpace(p.PublishedDate); d != "" {
		item.Metadata.PublishedDate = domain.StringPtr(d)
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		item.Metadata.Description = d
	}
	item.Content.Capabilities = append(item.Content.Capabilities, p.Capabilities...)
	for k, v := range p.TechnicalSpecs {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			item.Content.TechnicalSpecs[k] = v
		}
	}
	item.Content.CodeSnippets = append(item.Content.CodeSnippets, p.CodeSnippets...)
	for _, img := range p.Images {
		if isHTTPURL(img) {
			item.Content.Images = append(item.Content.Images, img)
		}
	}
	if isHTTPURL(p.RepositoryLink) {
		item.Content.RepositoryLink = domain.StringPtr(strings.TrimSpace(p.RepositoryLink))
	}
	if isHTTPURL(p.PaperLink) {
		item.Content.PaperLink = domain.StringPtr(strings.TrimSpace(p.PaperLink))
	}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitList(s string) []string {
	return nonEmpty(strings.Split(s, ","))
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// truncate cuts s to at most limit runes, preferring a word boundary.
func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
