package domain

import (
	"sort"
	"strings"
)

// TagCategory groups related tags.
type TagCategory struct {
	Name string   `yaml:"name" json:"name"`
	Tags []string `yaml:"tags" json:"tags"`
}

// Taxonomy is the closed set of tags an item may carry.
type Taxonomy struct {
	Categories []TagCategory `yaml:"categories" json:"categories"`
}

// AllTags returns every tag in the taxonomy, sorted.
func (t Taxonomy) AllTags() []string {
	var tags []string
	for _, c := range t.Categories {
		tags = append(tags, c.Tags...)
	}
	return UniqueSorted(tags)
}

// IsEmpty returns true if the taxonomy has no tags.
func (t Taxonomy) IsEmpty() bool {
	return len(t.AllTags()) == 0
}

// Filter keeps the tags present in the taxonomy, matched case-insensitively
// and returned in their canonical spelling.
func (t Taxonomy) Filter(tags []string) []string {
	canonical := make(map[string]string)
	for _, tag := range t.AllTags() {
		canonical[strings.ToLower(tag)] = tag
	}
	var out []string
	for _, tag := range tags {
		if c, ok := canonical[strings.ToLower(strings.TrimSpace(tag))]; ok {
			out = append(out, c)
		}
	}
	out = UniqueSorted(out)
	sort.Strings(out)
	return out
}

// DefaultTaxonomy returns the built-in tag set.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Categories: []TagCategory{
		{Name: "modality", Tags: []string{"text", "vision", "audio", "video", "multimodal", "code"}},
		{Name: "task", Tags: []string{
			"agents", "retrieval", "reasoning", "summarisation", "translation",
			"image-generation", "speech-recognition", "evaluation", "fine-tuning",
		}},
		{Name: "stage", Tags: []string{"research", "open-source", "commercial", "benchmark", "dataset"}},
		{Name: "infrastructure", Tags: []string{"inference", "training", "serving", "quantisation", "vector-database"}},
	}}
}
