package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// Ensure LLMTagger implements the interfaces.
var (
	_ driven.Tagger           = (*LLMTagger)(nil)
	_ driven.PromptStoreAware = (*LLMTagger)(nil)
)

// LLMTagger assigns taxonomy tags by asking an LLM.
// Tags the LLM invents are dropped.
type LLMTagger struct {
	llm         driven.LLMService
	taxonomy    domain.Taxonomy
	promptStore driven.PromptStore
	limit       int
}

// NewLLMTagger creates a tagger for the given taxonomy.
func NewLLMTagger(llm driven.LLMService, taxonomy domain.Taxonomy) *LLMTagger {
	return &LLMTagger{llm: llm, taxonomy: taxonomy, limit: DefaultContentLimit}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (t *LLMTagger) SetPromptStore(store driven.PromptStore) {
	t.promptStore = store
}

// Tag returns the taxonomy tags that describe text.
func (t *LLMTagger) Tag(ctx context.Context, text string) ([]string, error) {
	if t.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" || t.taxonomy.IsEmpty() {
		return []string{}, nil
	}
	if len([]rune(text)) > t.limit {
		logger.Debug("Tagging content truncated to %d characters", t.limit)
	}

	template := loadPrompt(t.promptStore, driven.PromptTagging, driven.DefaultTaggingPrompt)
	prompt := fmt.Sprintf(template, describeTaxonomy(t.taxonomy), truncateRunes(text, t.limit))

	response, err := t.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   300,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("tag: %w", err)
	}

	tags, err := decodeTags(response)
	if err != nil {
		return nil, fmt.Errorf("tag: %w", err)
	}
	return t.taxonomy.Filter(tags), nil
}

func describeTaxonomy(taxonomy domain.Taxonomy) string {
	var sb strings.Builder
	for _, c := range taxonomy.Categories {
		fmt.Fprintf(&sb, "- %s: %s\n", c.Name, strings.Join(c.Tags, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// decodeTags accepts {"tags": [...]} or a bare JSON array.
func decodeTags(response string) ([]string, error) {
	body := stripCodeFence(response)

	if start := strings.Index(body, "{"); start >= 0 {
		if end := strings.LastIndex(body, "}"); end > start {
			var obj struct {
				Tags []string `json:"tags"`
			}
			if err := json.Unmarshal([]byte(body[start:end+1]), &obj); err == nil {
				return obj.Tags, nil
			}
		}
	}
	if start := strings.Index(body, "["); start >= 0 {
		if end := strings.LastIndex(body, "]"); end > start {
			var list []string
			if err := json.Unmarshal([]byte(body[start:end+1]), &list); err == nil {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("no tag list in response")
}
