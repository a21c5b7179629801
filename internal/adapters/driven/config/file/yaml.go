package file

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// TopicsFile is the YAML layout of a topic list. A bare sequence of
// strings is accepted too.
type TopicsFile struct {
	Topics        []string `yaml:"topics"`
	QueryTemplate string   `yaml:"query_template"`
}

// LoadTopics reads a topic list. Blank and repeated topics are dropped.
func LoadTopics(path string) (TopicsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TopicsFile{}, fmt.Errorf("read topics: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return TopicsFile{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var tf TopicsFile
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		err = node.Content[0].Decode(&tf.Topics)
	} else {
		err = node.Decode(&tf)
	}
	if err != nil {
		return TopicsFile{}, fmt.Errorf("parse %s: %w", path, err)
	}

	tf.Topics = cleanTopics(tf.Topics)
	if len(tf.Topics) == 0 {
		return TopicsFile{}, fmt.Errorf("%s: %w: no topics", path, domain.ErrInvalidInput)
	}
	if tf.QueryTemplate != "" && strings.Count(tf.QueryTemplate, "%s") != 1 {
		return TopicsFile{}, fmt.Errorf("%s: %w: query_template needs exactly one %%s", path, domain.ErrInvalidInput)
	}
	return tf, nil
}

// LoadTaxonomy reads a tag taxonomy. An empty path yields the built-in one.
func LoadTaxonomy(path string) (domain.Taxonomy, error) {
	if path == "" {
		return domain.DefaultTaxonomy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}

	var t domain.Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return domain.Taxonomy{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if t.IsEmpty() {
		return domain.Taxonomy{}, errors.New(path + ": taxonomy has no tags")
	}
	return t, nil
}

func cleanTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
