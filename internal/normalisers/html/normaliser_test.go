package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Mixtral of Experts &amp; friends</title>
  <style>body { color: red; }</style>
  <script>var tracking = true;</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>Mixtral 8x7B</h1>
  <p>A sparse mixture-of-experts model.</p>
  <p>Outperforms <b>Llama 2 70B</b> on most benchmarks.</p>
  <img src="https://cdn.example.com/mixtral.png">
  <img src="/relative.png">
  <pre><code class="language-Python">from mistral import Model</code></pre>
  <pre class="lang-bash">pip install mistral</pre>
  <!-- comment -->
  <footer>Copyright</footer>
</body>
</html>`

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.Equal(t, []domain.ContentFormat{domain.ContentFormatHTML}, normaliser.Formats())
}

func TestNormalise_Title(t *testing.T) {
	got := New().Normalise(samplePage)
	assert.Equal(t, "Mixtral of Experts & friends", got.Title)
}

func TestNormalise_TitleFallbacks(t *testing.T) {
	og := `<html><head><meta property="og:title" content="OG Title"></head><body></body></html>`
	assert.Equal(t, "OG Title", New().Normalise(og).Title)

	h1 := `<html><body><h1>  Heading   One </h1></body></html>`
	assert.Equal(t, "Heading One", New().Normalise(h1).Title)

	assert.Empty(t, New().Normalise(`<p>no title</p>`).Title)
}

func TestNormalise_Text(t *testing.T) {
	text := New().Normalise(samplePage).Text

	assert.Contains(t, text, "A sparse mixture-of-experts model.")
	assert.Contains(t, text, "Outperforms Llama 2 70B on most benchmarks.")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Home")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "comment")
	assert.NotContains(t, text, "<")
}

func TestNormalise_CodeSnippets(t *testing.T) {
	snippets := New().Normalise(samplePage).CodeSnippets

	require.Len(t, snippets, 2)
	assert.Equal(t, domain.CodeSnippet{Language: "python", Code: "from mistral import Model"}, snippets[0])
	assert.Equal(t, domain.CodeSnippet{Language: "bash", Code: "pip install mistral"}, snippets[1])
}

func TestNormalise_Images(t *testing.T) {
	assert.Equal(t, []string{"https://cdn.example.com/mixtral.png"}, New().Normalise(samplePage).Images)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"entities", "<p>a &lt; b</p>", "a < b"},
		{"br", "line<br/>next", "line\nnext"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.input))
		})
	}
}
