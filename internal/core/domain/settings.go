package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ProviderSettings configures one search provider.
type ProviderSettings struct {
	// Enabled includes the provider in runs that do not name providers.
	Enabled bool

	// APIKey authenticates against the backend (token for GitHub).
	APIKey string

	// BaseURL overrides the backend endpoint.
	BaseURL string

	// Depth is the default search depth.
	Depth SearchDepth

	// Timeout bounds a single search call.
	Timeout time.Duration

	// Extra holds provider-specific values, e.g. "cx" for Google.
	Extra map[string]string
}

// SimilarityMethod selects the near-duplicate scoring function.
type SimilarityMethod string

// Similarity methods.
const (
	// SimilarityFingerprint compares token sets of title and description.
	SimilarityFingerprint SimilarityMethod = "fingerprint"

	// SimilarityEmbedding compares embedding vectors by cosine similarity.
	SimilarityEmbedding SimilarityMethod = "embedding"
)

// IsValid returns true if the method is recognised.
func (m SimilarityMethod) IsValid() bool {
	return m == SimilarityFingerprint || m == SimilarityEmbedding
}

// StorageBackend selects the item store.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StorageRedis, StorageMemory:
		return true
	default:
		return false
	}
}

// StorageSettings holds item store configuration.
type StorageSettings struct {
	Backend       StorageBackend
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// DiscoverySettings holds the defaults every run starts from.
type DiscoverySettings struct {
	MaxResults            int
	SimilarityThreshold   float64
	ExtractionEnabled     bool
	TaggingEnabled        bool
	RunTimeout            time.Duration
	ExtractionConcurrency int
	RecentWindow          int
}

// BatchSettings holds topic batch configuration.
type BatchSettings struct {
	// TopicsFile is a YAML file listing topics. Empty means built-in topics.
	TopicsFile string

	// Delay is the pause between topics.
	Delay time.Duration

	// QueryTemplate turns a topic into a query; %s is the topic.
	QueryTemplate string
}

// Settings holds all application settings.
// A Settings value is a snapshot: components receive it at construction
// and never observe later edits.
type Settings struct {
	Discovery  DiscoverySettings
	Providers  map[string]ProviderSettings
	LLM        LLMSettings
	Embedding  EmbeddingSettings
	Similarity SimilarityMethod
	Storage    StorageSettings
	Batch      BatchSettings

	// TaxonomyPath is a YAML tag taxonomy. Empty means the built-in taxonomy.
	TaxonomyPath string
}

// DefaultBatchQueryTemplate turns a topic into a discovery query.
const DefaultBatchQueryTemplate = "latest research and developments in AI: %s"

// DefaultSettings returns settings with sensible defaults.
// AI features are left unconfigured; providers are enabled once keyed.
func DefaultSettings() Settings {
	return Settings{
		Discovery: DiscoverySettings{
			MaxResults:            DefaultMaxResults,
			SimilarityThreshold:   DefaultSimilarityThreshold,
			RunTimeout:            DefaultRunTimeout,
			ExtractionConcurrency: DefaultExtractionConcurrency,
			RecentWindow:          DefaultRecentWindow,
		},
		Providers:  map[string]ProviderSettings{},
		Similarity: SimilarityFingerprint,
		Storage: StorageSettings{
			Backend:     StorageSQLite,
			RedisPrefix: "mosaic",
		},
		Batch: BatchSettings{
			Delay:         2 * time.Second,
			QueryTemplate: DefaultBatchQueryTemplate,
		},
	}
}

// RunConfig converts discovery settings into a run configuration.
func (s Settings) RunConfig() RunConfig {
	d := s.Discovery
	cfg := RunConfig{
		MaxResults:            d.MaxResults,
		SimilarityThreshold:   d.SimilarityThreshold,
		ExtractionEnabled:     d.ExtractionEnabled,
		TaggingEnabled:        d.TaggingEnabled,
		RunTimeout:            d.RunTimeout,
		ExtractionConcurrency: d.ExtractionConcurrency,
		RecentWindow:          d.RecentWindow,
		ProviderOptions:       make(map[string]ProviderOptions, len(s.Providers)),
	}
	for id, p := range s.Providers {
		cfg.ProviderOptions[id] = ProviderOptions{Depth: p.Depth, Timeout: p.Timeout, Extra: p.Extra}
	}
	return cfg.WithDefaults()
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// SettingSource tells where an effective setting value came from.
type SettingSource string

// Setting sources.
const (
	SettingSourceDefault SettingSource = "default"
	SettingSourceConfig  SettingSource = "config"
	SettingSourceEnv     SettingSource = "env"
)

// SettingEntry is one key of the effective configuration.
type SettingEntry struct {
	Key    string
	Value  string
	Source SettingSource

	// Secret values should be masked when displayed.
	Secret bool
}

// EmbeddingDimensions returns vector sizes of known embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
