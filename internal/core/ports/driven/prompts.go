package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptExtraction asks for structured attributes as JSON.
	// The prompt template expects %s (field list) and %s (content) placeholders.
	PromptExtraction = "extraction"

	// PromptTagging asks for taxonomy tags as a JSON array.
	// The prompt template expects %s (allowed tags) and %s (content) placeholders.
	PromptTagging = "tagging"
)

// Default prompt templates.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const (
	// DefaultExtractionPrompt is used when no custom extraction prompt exists.
	DefaultExtractionPrompt = `You extract structured facts about AI tools, models, papers and articles from scraped web content.

Return ONLY a JSON object with these keys. Omit a key or use an empty value when the content does not state it. Do not guess.

%s

Content:
---
%s
---

JSON:`

	// DefaultTaggingPrompt is used when no custom tagging prompt exists.
	DefaultTaggingPrompt = `You tag AI-related content scraped from the web (research papers, blog posts, code repositories).

Available tags:
%s

Rules:
1. Assign only tags from the list above that the content clearly supports.
2. Return ONLY a JSON object of the form {"tags": ["tag", ...]}.
3. If no tag applies, return {"tags": []}.

Content:
---
%s
---

JSON:`
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
