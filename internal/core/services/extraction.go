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

// Ensure LLMExtractor implements the interfaces.
var (
	_ driven.Extractor        = (*LLMExtractor)(nil)
	_ driven.PromptStoreAware = (*LLMExtractor)(nil)
)

// DefaultContentLimit is how many characters of content are sent to the LLM.
const DefaultContentLimit = 15000

// LLMExtractor fills a content schema by asking an LLM for JSON.
type LLMExtractor struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	limit       int
}

// NewLLMExtractor creates an extractor. A nil LLM makes every call fail
// with ErrLLMUnavailable.
func NewLLMExtractor(llm driven.LLMService) *LLMExtractor {
	return &LLMExtractor{llm: llm, limit: DefaultContentLimit}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (e *LLMExtractor) SetPromptStore(store driven.PromptStore) {
	e.promptStore = store
}

// Extract returns the schema attributes the LLM found in text.
func (e *LLMExtractor) Extract(
	ctx context.Context,
	text string,
	schema domain.ContentSchema,
) (*domain.PartialContent, error) {
	if e.llm == nil {
		return nil, &domain.ExtractionError{Reason: "no LLM configured", Cause: domain.ErrLLMUnavailable}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ExtractionError{Reason: "no content"}
	}

	template := loadPrompt(e.promptStore, driven.PromptExtraction, driven.DefaultExtractionPrompt)
	prompt := fmt.Sprintf(template, describeSchema(schema), truncateRunes(text, e.limit))

	response, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   1500,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, &domain.ExtractionError{Reason: "LLM call failed", Cause: err}
	}

	raw, err := decodeJSONObject(response)
	if err != nil {
		return nil, &domain.ExtractionError{Reason: "malformed response", Cause: err}
	}

	partial := &domain.PartialContent{}
	for _, field := range schema.Fields {
		value, ok := raw[field.Name]
		if !ok {
			continue
		}
		applyField(partial, field.Name, value)
	}
	logger.Debug("Extracted %d schema fields with %s", countFields(raw, schema), e.llm.ModelName())
	return partial, nil
}

// describeSchema renders one line per field for the prompt.
func describeSchema(schema domain.ContentSchema) string {
	var sb strings.Builder
	for _, f := range schema.Fields {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", f.Name, f.Kind, f.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// decodeJSONObject parses the first JSON object in an LLM response,
// tolerating code fences and surrounding prose.
func decodeJSONObject(response string) (map[string]json.RawMessage, error) {
	body := stripCodeFence(response)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return raw, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

//nolint:gocyclo // One case per schema field
func applyField(p *domain.PartialContent, name string, value json.RawMessage) {
	switch name {
	case domain.FieldTitle:
		p.Title = decodeString(value)
	case domain.FieldType:
		if t := domain.ItemType(strings.ToLower(decodeString(value))); t.IsValid() {
			p.Type = t
		}
	case domain.FieldAuthors:
		p.Authors = decodeStringList(value)
	case domain.FieldPublishedDate:
		p.PublishedDate = decodeString(value)
	case domain.FieldDescription:
		p.Description = decodeString(value)
	case domain.FieldCapabilities:
		p.Capabilities = decodeStringList(value)
	case domain.FieldTechnicalSpecs:
		p.TechnicalSpecs = decodeStringMap(value)
	case domain.FieldCodeSnippets:
		p.CodeSnippets = decodeSnippets(value)
	case domain.FieldImages:
		p.Images = decodeStringList(value)
	case domain.FieldRepositoryLink:
		p.RepositoryLink = decodeString(value)
	case domain.FieldPaperLink:
		p.PaperLink = decodeString(value)
	}
}

// decodeString accepts strings and numbers; anything else is empty.
func decodeString(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return cleanValue(s)
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeStringList accepts a list of strings or a single comma-separated string.
func decodeStringList(value json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(value, &list); err == nil {
		var out []string
		for _, v := range list {
			if s := decodeString(v); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(decodeString(value), ",") {
		if s := cleanValue(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeStringMap(value json.RawMessage) map[string]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if s := decodeString(v); key != "" && s != "" {
			out[key] = s
		}
	}
	return out
}

func decodeSnippets(value json.RawMessage) []domain.CodeSnippet {
	var raw []struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil
	}
	var out []domain.CodeSnippet
	for _, s := range raw {
		if strings.TrimSpace(s.Code) == "" {
			continue
		}
		out = append(out, domain.CodeSnippet{
			Language: strings.ToLower(strings.TrimSpace(s.Language)),
			Code:     strings.TrimRight(s.Code, "\n "),
		})
	}
	return out
}

// cleanValue trims s and drops the placeholders LLMs use for "unknown".
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "n/a", "na", "none", "null", "unknown", "not specified", "not stated":
		return ""
	}
	return s
}

func countFields(raw map[string]json.RawMessage, schema domain.ContentSchema) int {
	n := 0
	for _, f := range schema.Fields {
		if _, ok := raw[f.Name]; ok {
			n++
		}
	}
	return n
}

// truncateRunes cuts s to at most limit runes.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// loadPrompt loads a prompt from the store, falling back to the default if
// unavailable or if the custom prompt's %s count differs from the default's.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	if strings.Count(prompt, "%s") != strings.Count(fallback, "%s") {
		return fallback
	}
	return prompt
}
