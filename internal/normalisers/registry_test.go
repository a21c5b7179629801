package normalisers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/normalisers/html"
	"github.com/custodia-labs/mosaic/internal/normalisers/markdown"
	"github.com/custodia-labs/mosaic/internal/normalisers/plaintext"
)

type registryStubNormaliser struct{}

func (registryStubNormaliser) Formats() []domain.ContentFormat {
	return []domain.ContentFormat{domain.ContentFormatHTML}
}

func (registryStubNormaliser) Normalise(raw string) driven.NormalisedContent {
	return driven.NormalisedContent{Text: "stub"}
}

func TestDefaultRegistry_Dispatch(t *testing.T) {
	r := DefaultRegistry()

	assert.IsType(t, &html.Normaliser{}, r.Get(domain.ContentFormatHTML))
	assert.IsType(t, &markdown.Normaliser{}, r.Get(domain.ContentFormatMarkdown))
	assert.IsType(t, &plaintext.Normaliser{}, r.Get(domain.ContentFormatText))
	assert.IsType(t, &plaintext.Normaliser{}, r.Get(domain.ContentFormatUnknown))
	assert.IsType(t, &plaintext.Normaliser{}, r.Get("pdf"))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := DefaultRegistry()
	r.Register(registryStubNormaliser{})

	assert.Equal(t, "stub", r.Get(domain.ContentFormatHTML).Normalise("<p>x</p>").Text)
}

func TestNewRegistry_FallsBackToPlaintext(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "hello", r.Get(domain.ContentFormatMarkdown).Normalise("  hello  ").Text)
}
