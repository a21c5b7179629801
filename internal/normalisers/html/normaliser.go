package html

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML content.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Formats returns the content formats this normaliser handles.
func (n *Normaliser) Formats() []domain.ContentFormat {
	return []domain.ContentFormat{domain.ContentFormatHTML}
}

// Normalise parses the page, then strips it to text.
// Unparseable input falls back to regex stripping.
func (n *Normaliser) Normalise(raw string) driven.NormalisedContent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return driven.NormalisedContent{Text: stripHTML(raw)}
	}

	out := driven.NormalisedContent{
		Title:        extractHTMLTitle(doc),
		CodeSnippets: extractCodeBlocks(doc),
		Images:       extractImages(doc),
	}

	doc.Find("head, script, style, noscript, svg, nav, footer, iframe, form").Remove()
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		body, _ = doc.Html()
	}
	out.Text = stripHTML(body)
	return out
}

// extractHTMLTitle prefers <title>, then og:title, then the first <h1>.
func extractHTMLTitle(doc *goquery.Document) string {
	if title := cleanInline(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if title := cleanInline(og); title != "" {
			return title
		}
	}
	return cleanInline(doc.Find("h1").First().Text())
}

// extractCodeBlocks returns the contents of <pre> blocks, reading the
// language from a language-* or lang-* class on <pre> or its <code>.
func extractCodeBlocks(doc *goquery.Document) []domain.CodeSnippet {
	var snippets []domain.CodeSnippet
	doc.Find("pre").Each(func(_ int, pre *goquery.Selection) {
		code := strings.TrimSpace(pre.Text())
		if code == "" {
			return
		}
		lang := languageFromClass(pre.Find("code").AttrOr("class", ""))
		if lang == "" {
			lang = languageFromClass(pre.AttrOr("class", ""))
		}
		snippets = append(snippets, domain.CodeSnippet{Language: lang, Code: code})
	})
	return snippets
}

func languageFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(c, prefix) {
				return strings.ToLower(strings.TrimPrefix(c, prefix))
			}
		}
	}
	return ""
}

// extractImages returns absolute <img> sources in document order.
func extractImages(doc *goquery.Document) []string {
	var images []string
	seen := make(map[string]bool)
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			return
		}
		if !seen[src] {
			seen[src] = true
			images = append(images, src)
		}
	})
	return images
}

func cleanInline(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// Pre-compiled regular expressions for HTML stripping.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
)

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	// Block elements become line breaks so paragraphs stay apart
	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(plaintext.CollapseWhitespace(content), "\n")
	result := lines[:0]
	for _, line := range lines {
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
