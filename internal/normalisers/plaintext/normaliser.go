package plaintext

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and content of unknown format.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Formats returns the content formats this normaliser handles.
func (n *Normaliser) Formats() []domain.ContentFormat {
	return []domain.ContentFormat{domain.ContentFormatText, domain.ContentFormatUnknown}
}

// Normalise tidies whitespace. Plain text carries no title or assets.
func (n *Normaliser) Normalise(raw string) driven.NormalisedContent {
	return driven.NormalisedContent{Text: CollapseWhitespace(raw)}
}

var (
	multiSpaces   = regexp.MustCompile(`[ \t\f\v]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// CollapseWhitespace trims every line, squeezes runs of spaces and keeps
// at most one blank line between paragraphs.
func CollapseWhitespace(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
