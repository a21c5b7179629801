package domain

import "time"

// ContentFormat describes how RawHit.RawContent is encoded.
type ContentFormat string

// Known raw content formats.
const (
	ContentFormatUnknown  ContentFormat = ""
	ContentFormatHTML     ContentFormat = "html"
	ContentFormatMarkdown ContentFormat = "markdown"
	ContentFormatText     ContentFormat = "text"
)

// RawHit is one unprocessed search result from a provider.
// It lives only for the duration of a run.
type RawHit struct {
	// SourceURL is the location of the result. May be empty.
	SourceURL string

	// Title as reported by the provider. May be empty.
	Title string

	// Snippet is the short summary shown in search results.
	Snippet string

	// RawContent is the page body, when the provider returned one.
	RawContent string

	// ContentFormat tells the normaliser how RawContent is encoded.
	ContentFormat ContentFormat

	// ProviderID identifies the provider that produced the hit.
	ProviderID string

	// FetchedAt is when the provider returned the hit.
	FetchedAt time.Time

	// Metadata carries structured facts the provider already knows,
	// keyed by the HitMeta* constants.
	Metadata map[string]string
}

// Well-known RawHit.Metadata keys.
const (
	// HitMetaAuthors is a comma-separated author list.
	HitMetaAuthors = "authors"

	// HitMetaPublishedDate is the publication date, YYYY-MM-DD preferred.
	HitMetaPublishedDate = "published_date"

	// HitMetaType is an ItemType the provider is sure of.
	HitMetaType = "type"

	// HitMetaPaperLink is a link to the paper PDF or abstract.
	HitMetaPaperLink = "paper_link"

	// HitMetaSpecPrefix marks keys copied into content.technical_specs.
	HitMetaSpecPrefix = "spec."
)

// SearchDepth controls how much work a provider does per query.
type SearchDepth string

// Search depths.
const (
	SearchDepthBasic SearchDepth = "basic"
	SearchDepthDeep  SearchDepth = "deep"
)

// IsValid returns true if the depth is recognised.
func (d SearchDepth) IsValid() bool {
	return d == SearchDepthBasic || d == SearchDepthDeep
}

// ProviderOptions are the per-call knobs passed to a provider.
type ProviderOptions struct {
	// Depth selects a basic or deep search.
	Depth SearchDepth

	// Timeout bounds a single Search call. Zero means the provider default.
	Timeout time.Duration

	// Extra carries provider-specific options.
	Extra map[string]string
}
