package domain

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// ItemType classifies a discovered item.
type ItemType string

// Item types.
const (
	ItemTypeTool    ItemType = "tool"
	ItemTypeModel   ItemType = "model"
	ItemTypePaper   ItemType = "paper"
	ItemTypeArticle ItemType = "article"
)

// IsValid returns true if the item type is recognised.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeTool, ItemTypeModel, ItemTypePaper, ItemTypeArticle:
		return true
	default:
		return false
	}
}

// AllItemTypes returns every recognised item type.
func AllItemTypes() []ItemType {
	return []ItemType{ItemTypeTool, ItemTypeModel, ItemTypePaper, ItemTypeArticle}
}

// Platform is the hosting platform inferred from the source URL.
type Platform string

// Platforms.
const (
	PlatformGitHub Platform = "github"
	PlatformArxiv  Platform = "arxiv"
	PlatformWeb    Platform = "web"
)

// Item is the durable, normalised record of one discovered piece of content.
// Its JSON encoding is the persisted contract shared by every store.
type Item struct {
	// ID is derived from the canonical source URL, or from a content hash
	// when no URL exists. Unique across the store.
	ID string `json:"id"`

	Metadata Metadata `json:"metadata"`
	Content  Content  `json:"content"`
	Source   Source   `json:"source"`

	// Aliases are ids of near-duplicates that were folded into this item.
	Aliases []string `json:"aliases"`

	// Tags are taxonomy tags assigned to the item.
	Tags []string `json:"assigned_tags"`

	// Guessed marks metadata derived from the URL instead of read from
	// the hit or the extractor. It is never persisted, so stored values
	// always count as real.
	Guessed GuessedFields `json:"-"`
}

// GuessedFields is a set of metadata fields filled by a fallback.
type GuessedFields uint8

// Fields the normaliser can guess.
const (
	GuessedTitle GuessedFields = 1 << iota
	GuessedType
)

// Has returns true if every field in f is marked.
func (g GuessedFields) Has(f GuessedFields) bool {
	return g&f == f
}

func (g GuessedFields) set(f GuessedFields, on bool) GuessedFields {
	if on {
		return g | f
	}
	return g &^ f
}

// Metadata describes what the item is.
type Metadata struct {
	Title         string   `json:"title"`
	Type          ItemType `json:"type"`
	Authors       []string `json:"authors"`
	PublishedDate *string  `json:"published_date"`
	Description   string   `json:"description"`
}

// Content holds the structured attributes of the item.
type Content struct {
	Capabilities   []string          `json:"capabilities"`
	TechnicalSpecs map[string]string `json:"technical_specs"`
	CodeSnippets   []CodeSnippet     `json:"code_snippets"`
	Images         []string          `json:"images"`
	RepositoryLink *string           `json:"repository_link"`
	PaperLink      *string           `json:"paper_link"`
}

// CodeSnippet is a fenced piece of code found in the content.
type CodeSnippet struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Source records where and when the item was seen.
type Source struct {
	URL             string       `json:"url"`
	Platform        Platform     `json:"platform"`
	ScrapeTimestamp time.Time    `json:"scrape_timestamp"`
	// ScraperIDs is the sorted set of providers that reported the item.
	ScraperIDs []string     `json:"scraper_id"`
	Provenance []Provenance `json:"provenance"`
}

// Provenance is one (provider, time) sighting of an item.
type Provenance struct {
	ScraperID string    `json:"scraper_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FirstSeen returns the earliest sighting of the item.
// It is stable across merges and drives near-duplicate tie-breaking.
func (i *Item) FirstSeen() time.Time {
	first := i.Source.ScrapeTimestamp
	for _, p := range i.Source.Provenance {
		if p.Timestamp.Before(first) {
			first = p.Timestamp
		}
	}
	return first
}

// HasScraper returns true if the given provider has reported the item.
func (i *Item) HasScraper(id string) bool {
	for _, s := range i.Source.ScraperIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata.Authors = cloneStrings(i.Metadata.Authors)
	c.Metadata.PublishedDate = cloneStringPtr(i.Metadata.PublishedDate)
	c.Content.Capabilities = cloneStrings(i.Content.Capabilities)
	c.Content.Images = cloneStrings(i.Content.Images)
	c.Content.RepositoryLink = cloneStringPtr(i.Content.RepositoryLink)
	c.Content.PaperLink = cloneStringPtr(i.Content.PaperLink)
	c.Content.CodeSnippets = append([]CodeSnippet(nil), i.Content.CodeSnippets...)
	c.Content.TechnicalSpecs = make(map[string]string, len(i.Content.TechnicalSpecs))
	for k, v := range i.Content.TechnicalSpecs {
		c.Content.TechnicalSpecs[k] = v
	}
	c.Source.ScraperIDs = cloneStrings(i.Source.ScraperIDs)
	c.Source.Provenance = append([]Provenance(nil), i.Source.Provenance...)
	c.Aliases = cloneStrings(i.Aliases)
	c.Tags = cloneStrings(i.Tags)
	c.EnsureCollections()
	return &c
}

// EnsureCollections replaces nil collections with empty ones so the
// persisted JSON always carries [] and {} rather than null.
func (i *Item) EnsureCollections() {
	if i.Metadata.Authors == nil {
		i.Metadata.Authors = []string{}
	}
	if i.Content.Capabilities == nil {
		i.Content.Capabilities = []string{}
	}
	if i.Content.TechnicalSpecs == nil {
		i.Content.TechnicalSpecs = map[string]string{}
	}
	if i.Content.CodeSnippets == nil {
		i.Content.CodeSnippets = []CodeSnippet{}
	}
	if i.Content.Images == nil {
		i.Content.Images = []string{}
	}
	if i.Source.ScraperIDs == nil {
		i.Source.ScraperIDs = []string{}
	}
	if i.Source.Provenance == nil {
		i.Source.Provenance = []Provenance{}
	}
	if i.Aliases == nil {
		i.Aliases = []string{}
	}
	if i.Tags == nil {
		i.Tags = []string{}
	}
}

// SimilarityText is the text near-duplicate detection compares.
func (i *Item) SimilarityText() string {
	return strings.TrimSpace(i.Metadata.Title + " " + i.Metadata.Description)
}

// SimilarityKey is a normalised fingerprint of title and description:
// lower-cased word tokens with punctuation and stop words removed,
// de-duplicated and sorted. Two items with equal keys describe the
// same thing in the same words.
func (i *Item) SimilarityKey() string {
	return strings.Join(FingerprintTokens(i.SimilarityText()), " ")
}

// FingerprintTokens splits text into the sorted, unique, stop-word-free
// tokens used for similarity keys.
func FingerprintTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return tokens
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "with": {},
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
