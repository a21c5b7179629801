package markdown

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown content, as returned by scraping APIs.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Formats returns the content formats this normaliser handles.
func (n *Normaliser) Formats() []domain.ContentFormat {
	return []domain.ContentFormat{domain.ContentFormatMarkdown}
}

// Normalise converts markdown to plain text, collecting fenced code
// blocks and absolute image links on the way.
func (n *Normaliser) Normalise(raw string) driven.NormalisedContent {
	return driven.NormalisedContent{
		Title:        extractMarkdownTitle(raw),
		Text:         stripMarkdown(raw),
		CodeSnippets: extractCodeBlocks(raw),
		Images:       extractImages(raw),
	}
}

var (
	fencedBlock  = regexp.MustCompile("(?s)```([\\w+#.-]*)[^\\n]*\\n(.*?)```")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	imageLink    = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	link         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquote   = regexp.MustCompile(`(?m)^>\s*`)
	hr           = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	emphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
)

// extractMarkdownTitle returns the first H1 heading, or "".
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// extractCodeBlocks returns fenced code blocks with their info-string language.
func extractCodeBlocks(content string) []domain.CodeSnippet {
	var snippets []domain.CodeSnippet
	for _, m := range fencedBlock.FindAllStringSubmatch(content, -1) {
		code := strings.TrimRight(m[2], "\n ")
		if strings.TrimSpace(code) == "" {
			continue
		}
		snippets = append(snippets, domain.CodeSnippet{
			Language: strings.ToLower(m[1]),
			Code:     code,
		})
	}
	return snippets
}

// extractImages returns absolute image URLs in document order.
func extractImages(content string) []string {
	var images []string
	seen := make(map[string]bool)
	for _, m := range imageLink.FindAllStringSubmatch(content, -1) {
		src := m[1]
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			continue
		}
		if !seen[src] {
			seen[src] = true
			images = append(images, src)
		}
	}
	return images
}

// stripMarkdown removes common markdown formatting for plain text content.
// This is a simplified implementation that handles common cases.
func stripMarkdown(content string) string {
	content = fencedBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = imageLink.ReplaceAllString(content, "")
	content = link.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")

	return plaintext.CollapseWhitespace(content)
}
