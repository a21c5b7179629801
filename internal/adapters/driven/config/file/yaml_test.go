package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadTopics(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantTopics   []string
		wantTemplate string
		wantErr      bool
	}{
		{
			name:       "bare list",
			content:    "- AI agents\n- '  vector databases '\n- AI agents\n- ''\n",
			wantTopics: []string{"AI agents", "vector databases"},
		},
		{
			name:         "mapping",
			content:      "topics:\n  - diffusion models\nquery_template: \"new %s releases\"\n",
			wantTopics:   []string{"diffusion models"},
			wantTemplate: "new %s releases",
		},
		{name: "empty", content: "topics: []\n", wantErr: true},
		{name: "bad template", content: "topics: [x]\nquery_template: none\n", wantErr: true},
		{name: "not yaml", content: "topics: [unclosed\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, err := LoadTopics(writeFile(t, "topics.yaml", tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTopics, tf.Topics)
			assert.Equal(t, tt.wantTemplate, tf.QueryTemplate)
		})
	}

	_, err := LoadTopics(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTaxonomy(t *testing.T) {
	tax, err := LoadTaxonomy("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTaxonomy(), tax)

	path := writeFile(t, "tags.yaml", `
categories:
  - name: modality
    tags: [vision, text]
  - name: task
    tags: [agents]
`)
	tax, err = LoadTaxonomy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"agents", "text", "vision"}, tax.AllTags())

	_, err = LoadTaxonomy(writeFile(t, "empty.yaml", "categories: []\n"))
	assert.ErrorContains(t, err, "no tags")
}
