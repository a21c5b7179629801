package driven

import "github.com/custodia-labs/mosaic/internal/core/domain"

// Normaliser turns raw content of one format into clean plain text.
type Normaliser interface {
	// Formats returns the content formats this normaliser handles.
	Formats() []domain.ContentFormat

	// Normalise strips markup and collects embedded assets.
	Normalise(raw string) NormalisedContent
}

// NormalisedContent is the output of a Normaliser.
type NormalisedContent struct {
	// Title is the document title found in the markup, or "".
	Title string

	// Text is the readable text.
	Text string

	// CodeSnippets are fenced or <pre> code blocks.
	CodeSnippets []domain.CodeSnippet

	// Images are absolute image URLs.
	Images []string
}

// NormaliserRegistry dispatches raw content to the normaliser for its format.
type NormaliserRegistry interface {
	// Register adds a normaliser for each of its formats.
	Register(normaliser Normaliser)

	// Get returns the normaliser for a format, falling back to plain text.
	Get(format domain.ContentFormat) Normaliser
}

// HitNormaliser converts raw provider hits into items.
// Implementations are pure: equal inputs give equal items.
type HitNormaliser interface {
	// Normalise builds an item from raw, applying extracted attributes
	// over the defaults when extracted is non-nil.
	// Returns *domain.ValidationError for hits that cannot become items.
	Normalise(raw domain.RawHit, extracted *domain.PartialContent) (*domain.Item, error)

	// Text returns the cleaned text of raw, used as extractor input.
	Text(raw domain.RawHit) string
}
