package plaintext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestFormats(t *testing.T) {
	formats := New().Formats()
	assert.Contains(t, formats, domain.ContentFormatText)
	assert.Contains(t, formats, domain.ContentFormatUnknown)
}

func TestNormalise(t *testing.T) {
	got := New().Normalise("  First   line \r\n\r\n\r\n\r\n second\tline  ")

	assert.Equal(t, "First line\n\nsecond line", got.Text)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.CodeSnippets)
	assert.Empty(t, got.Images)
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only spaces", "   \n\t  ", ""},
		{"single paragraph", "a  b   c", "a b c"},
		{"keeps one blank line", "a\n\n\n\nb", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollapseWhitespace(tt.input))
		})
	}
}
