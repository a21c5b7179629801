package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys read outside the key table.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider       = "llm.provider"
	keyLLMAPIKey         = "llm.api_key"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedAPIKey       = "embedding.api_key"
	keyRedisAddr         = "storage.redis_addr"
	keySchedulerEnabled  = "scheduler.enabled"
	keyTopicTaskEnabled  = "scheduler.topic_discovery.enabled"
	keyTopicTaskInterval = "scheduler.topic_discovery.interval"
)

// Environment variables that override config values.
const (
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
	envRedisAddr    = "MOSAIC_REDIS_ADDR"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

// setting describes one recognised configuration key.
type setting struct {
	key    string
	kind   valueKind
	secret bool

	// check validates a parsed value before it is stored.
	check func(value any) error

	// show renders the effective value from a settings snapshot.
	show func(s *domain.Settings) string

	// showSched renders scheduler keys, which live outside Settings.
	showSched func(c domain.SchedulerConfig) string

	// env returns the overriding environment variable, if any.
	env func(s *domain.Settings) string
}

// SettingsService assembles settings snapshots from the config store and
// the environment, and edits the config store one key at a time.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
	settings    []setting
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
	s.settings = buildSettingTable()
	return s
}

// Get assembles the current settings snapshot. Environment variables win
// over the config file; the config file wins over defaults.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()
	out := &domain.Settings{
		Discovery: domain.DiscoverySettings{
			MaxResults:            s.getInt("discovery.max_results", d.Discovery.MaxResults),
			SimilarityThreshold:   s.getFloat("discovery.similarity_threshold", d.Discovery.SimilarityThreshold),
			ExtractionEnabled:     s.getBool("discovery.extraction_enabled", d.Discovery.ExtractionEnabled),
			TaggingEnabled:        s.getBool("discovery.tagging_enabled", d.Discovery.TaggingEnabled),
			RunTimeout:            s.getDuration("discovery.run_timeout", d.Discovery.RunTimeout),
			ExtractionConcurrency: s.getInt("discovery.extraction_concurrency", d.Discovery.ExtractionConcurrency),
			RecentWindow:          s.getInt("discovery.recent_window", d.Discovery.RecentWindow),
		},
		Providers: make(map[string]domain.ProviderSettings),
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.configStore.GetString("llm.model"),
			BaseURL:  s.configStore.GetString("llm.base_url"), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.configStore.GetString("embedding.model"),
			BaseURL:  s.configStore.GetString("embedding.base_url"),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		Similarity: domain.SimilarityMethod(s.getString("similarity.method", string(d.Similarity))),
		Storage: domain.StorageSettings{
			Backend:       domain.StorageBackend(s.getString("storage.backend", string(d.Storage.Backend))),
			DataDir:       s.configStore.GetString("storage.data_dir"),
			RedisAddr:     s.configStore.GetString(keyRedisAddr),
			RedisPassword: s.configStore.GetString("storage.redis_password"),
			RedisDB:       s.getInt("storage.redis_db", d.Storage.RedisDB),
			RedisPrefix:   s.getString("storage.redis_prefix", d.Storage.RedisPrefix),
		},
		Batch: domain.BatchSettings{
			TopicsFile:    s.configStore.GetString("batch.topics_file"),
			Delay:         s.getDuration("batch.delay", d.Batch.Delay),
			QueryTemplate: s.getString("batch.query_template", d.Batch.QueryTemplate),
		},
		TaxonomyPath: s.configStore.GetString("taxonomy.path"),
	}

	if out.LLM.Model == "" {
		out.LLM.Model = domain.DefaultLLMModels()[out.LLM.Provider]
	}
	if out.Embedding.Model == "" {
		out.Embedding.Model = domain.DefaultEmbeddingModels()[out.Embedding.Provider]
	}
	if key := s.getenv(aiKeyEnv(out.LLM.Provider)); key != "" {
		out.LLM.APIKey = key
	}
	if key := s.getenv(aiKeyEnv(out.Embedding.Provider)); key != "" {
		out.Embedding.APIKey = key
	}
	if addr := s.getenv(envRedisAddr); addr != "" {
		out.Storage.RedisAddr = addr
	}

	for _, spec := range domain.KnownProviders() {
		out.Providers[spec.ID] = s.providerSettings(spec)
	}
	return out, nil
}

// providerSettings assembles one provider's settings.
func (s *SettingsService) providerSettings(spec domain.ProviderSpec) domain.ProviderSettings {
	prefix := "providers." + spec.ID + "."
	ps := domain.ProviderSettings{
		APIKey:  s.configStore.GetString(prefix + "api_key"),
		BaseURL: s.configStore.GetString(prefix + "base_url"),
		Depth:   domain.SearchDepth(s.configStore.GetString(prefix + "depth")),
		Timeout: s.configStore.GetDuration(prefix + "timeout"),
		Extra:   make(map[string]string),
	}
	if spec.APIKeyEnv != "" {
		if key := s.getenv(spec.APIKeyEnv); key != "" {
			ps.APIKey = key
		}
	}
	for _, name := range spec.ExtraKeys {
		value := s.configStore.GetString(prefix + "extra." + name)
		if env := spec.ExtraEnv[name]; env != "" && s.getenv(env) != "" {
			value = s.getenv(env)
		}
		if value != "" {
			ps.Extra[name] = value
		}
	}

	ps.Enabled = spec.EnabledByDefault || ps.APIKey != ""
	if _, ok := s.configStore.Get(prefix + "enabled"); ok {
		ps.Enabled = s.configStore.GetBool(prefix + "enabled")
	}
	return ps
}

// Set parses value according to the key's type, validates it and
// persists it.
func (s *SettingsService) Set(key, value string) error {
	def, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseValue(def.kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	if def.check != nil {
		if err := def.check(parsed); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
		}
	}
	if d, ok := parsed.(time.Duration); ok {
		parsed = d.String()
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised configuration key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(s.settings))
	for _, def := range s.settings {
		keys = append(keys, def.key)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns every key with its effective value and where it came from.
func (s *SettingsService) Entries() ([]domain.SettingEntry, error) {
	snapshot, err := s.Get()
	if err != nil {
		return nil, err
	}

	sched := s.GetSchedulerConfig()

	entries := make([]domain.SettingEntry, 0, len(s.settings))
	for _, def := range s.settings {
		entry := domain.SettingEntry{
			Key:    def.key,
			Source: domain.SettingSourceDefault,
			Secret: def.secret,
		}
		if def.showSched != nil {
			entry.Value = def.showSched(sched)
		} else {
			entry.Value = def.show(snapshot)
		}
		if _, ok := s.configStore.Get(def.key); ok {
			entry.Source = domain.SettingSourceConfig
		}
		if def.env != nil {
			if env := def.env(snapshot); env != "" && s.getenv(env) != "" {
				entry.Source = domain.SettingSourceEnv
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Check reports configuration problems without contacting any backend.
// Fatal issues stop a run from starting; the rest degrade it.
//
//nolint:gocyclo // A flat list of independent checks.
func (s *SettingsService) Check() []domain.SettingsIssue {
	snapshot, err := s.Get()
	if err != nil {
		return []domain.SettingsIssue{{Message: err.Error(), Fatal: true}}
	}

	var issues []domain.SettingsIssue
	fatal := func(key, format string, args ...any) {
		issues = append(issues, domain.SettingsIssue{Key: key, Message: fmt.Sprintf(format, args...), Fatal: true})
	}
	warn := func(key, format string, args ...any) {
		issues = append(issues, domain.SettingsIssue{Key: key, Message: fmt.Sprintf(format, args...)})
	}

	if err := snapshot.RunConfig().Validate(); err != nil {
		fatal("discovery", "%v", err)
	}

	usable := 0
	for _, spec := range domain.KnownProviders() {
		ps := snapshot.Providers[spec.ID]
		if !ps.Enabled {
			continue
		}
		prefix := "providers." + spec.ID + "."
		ok := true
		if spec.RequiresAPIKey && ps.APIKey == "" {
			warn(prefix+"api_key", "%s is enabled but has no API key (set %s); it will be skipped", spec.Name, spec.APIKeyEnv)
			ok = false
		}
		for _, name := range spec.RequiredExtras {
			if ps.Extra[name] == "" {
				warn(prefix+"extra."+name, "%s needs %q; it will be skipped", spec.Name, name)
				ok = false
			}
		}
		if ok {
			usable++
		}
	}
	if usable == 0 {
		fatal("providers", "no usable providers are enabled")
	}

	needLLM := snapshot.Discovery.ExtractionEnabled || snapshot.Discovery.TaggingEnabled
	if needLLM && !snapshot.LLM.IsConfigured() {
		fatal(keyLLMProvider, "extraction or tagging is enabled but no LLM provider is configured")
	}
	if snapshot.LLM.Provider != "" && !snapshot.LLM.Provider.IsValid() {
		fatal(keyLLMProvider, "unknown LLM provider %q", snapshot.LLM.Provider)
	}

	if !snapshot.Similarity.IsValid() {
		fatal("similarity.method", "unknown similarity method %q", snapshot.Similarity)
	}
	if snapshot.Similarity == domain.SimilarityEmbedding && !snapshot.Embedding.IsConfigured() {
		fatal(keyEmbedProvider, "similarity method %q needs an embedding provider", snapshot.Similarity)
	}

	switch {
	case !snapshot.Storage.Backend.IsValid():
		fatal("storage.backend", "unknown storage backend %q", snapshot.Storage.Backend)
	case snapshot.Storage.Backend == domain.StorageRedis && snapshot.Storage.RedisAddr == "":
		fatal(keyRedisAddr, "redis backend needs an address (set %s)", envRedisAddr)
	case snapshot.Storage.Backend == domain.StorageMemory:
		warn("storage.backend", "memory backend keeps nothing between runs")
	}

	if path := snapshot.Batch.TopicsFile; path != "" {
		if _, err := os.Stat(path); err != nil {
			fatal("batch.topics_file", "topics file: %v", err)
		}
	}
	if path := snapshot.TaxonomyPath; path != "" {
		if _, err := os.Stat(path); err != nil {
			fatal("taxonomy.path", "taxonomy file: %v", err)
		}
	}
	return issues
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		cfg.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	task := cfg.TaskConfigs[domain.TaskIDTopicDiscovery]
	if _, exists := s.configStore.Get(keyTopicTaskEnabled); exists {
		task.Enabled = s.configStore.GetBool(keyTopicTaskEnabled)
	}
	if d := s.configStore.GetDuration(keyTopicTaskInterval); d > 0 {
		task.Interval = d
	}
	cfg.TaskConfigs[domain.TaskIDTopicDiscovery] = task
	return cfg
}

func (s *SettingsService) lookup(key string) (setting, bool) {
	for _, def := range s.settings {
		if def.key == key {
			return def, true
		}
	}
	return setting{}, false
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetDuration(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return domain.AIProvider(val)
}

// aiKeyEnv names the environment variable holding an AI provider's key.
func aiKeyEnv(p domain.AIProvider) string {
	switch p {
	case domain.AIProviderOpenAI:
		return envOpenAIKey
	case domain.AIProviderAnthropic:
		return envAnthropicKey
	default:
		return ""
	}
}

func parseValue(kind valueKind, raw string) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return int64(n), nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not true or false", raw)
		}
		return b, nil
	case kindDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a duration like 90s or 6h", raw)
		}
		return d, nil
	default:
		return raw, nil
	}
}

func positiveInt(v any) error {
	if v.(int64) < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func nonNegativeInt(v any) error {
	if v.(int64) < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func positiveDuration(v any) error {
	if v.(time.Duration) <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func nonNegativeDuration(v any) error {
	if v.(time.Duration) < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func oneOf(allowed ...string) func(any) error {
	return func(v any) error {
		s := v.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func aiProviderNames(providers []domain.AIProvider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, string(p))
	}
	return names
}

func fixedEnv(name string) func(*domain.Settings) string {
	return func(*domain.Settings) string { return name }
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

//nolint:funlen // One entry per recognised key.
func buildSettingTable() []setting {
	table := []setting{
		{key: "discovery.max_results", kind: kindInt, check: positiveInt,
			show: func(s *domain.Settings) string { return strconv.Itoa(s.Discovery.MaxResults) }},
		{key: "discovery.similarity_threshold", kind: kindFloat,
			check: func(v any) error {
				if f := v.(float64); f <= 0 || f > 1 {
					return fmt.Errorf("must be in (0, 1]")
				}
				return nil
			},
			show: func(s *domain.Settings) string {
				return strconv.FormatFloat(s.Discovery.SimilarityThreshold, 'f', -1, 64)
			}},
		{key: "discovery.extraction_enabled", kind: kindBool,
			show: func(s *domain.Settings) string { return strconv.FormatBool(s.Discovery.ExtractionEnabled) }},
		{key: "discovery.tagging_enabled", kind: kindBool,
			show: func(s *domain.Settings) string { return strconv.FormatBool(s.Discovery.TaggingEnabled) }},
		{key: "discovery.run_timeout", kind: kindDuration, check: positiveDuration,
			show: func(s *domain.Settings) string { return formatDuration(s.Discovery.RunTimeout) }},
		{key: "discovery.extraction_concurrency", kind: kindInt, check: positiveInt,
			show: func(s *domain.Settings) string { return strconv.Itoa(s.Discovery.ExtractionConcurrency) }},
		{key: "discovery.recent_window", kind: kindInt, check: nonNegativeInt,
			show: func(s *domain.Settings) string { return strconv.Itoa(s.Discovery.RecentWindow) }},

		{key: keyLLMProvider, check: oneOf(aiProviderNames(domain.AllLLMProviders())...),
			show: func(s *domain.Settings) string { return string(s.LLM.Provider) }},
		{key: "llm.model",
			show: func(s *domain.Settings) string { return s.LLM.Model }},
		{key: "llm.base_url",
			show: func(s *domain.Settings) string { return s.LLM.BaseURL }},
		{key: keyLLMAPIKey, secret: true,
			show: func(s *domain.Settings) string { return s.LLM.APIKey },
			env:  func(s *domain.Settings) string { return aiKeyEnv(s.LLM.Provider) }},

		{key: keyEmbedProvider, check: oneOf(aiProviderNames(domain.AllEmbeddingProviders())...),
			show: func(s *domain.Settings) string { return string(s.Embedding.Provider) }},
		{key: "embedding.model",
			show: func(s *domain.Settings) string { return s.Embedding.Model }},
		{key: "embedding.base_url",
			show: func(s *domain.Settings) string { return s.Embedding.BaseURL }},
		{key: keyEmbedAPIKey, secret: true,
			show: func(s *domain.Settings) string { return s.Embedding.APIKey },
			env:  func(s *domain.Settings) string { return aiKeyEnv(s.Embedding.Provider) }},

		{key: "similarity.method",
			check: oneOf(string(domain.SimilarityFingerprint), string(domain.SimilarityEmbedding)),
			show:  func(s *domain.Settings) string { return string(s.Similarity) }},

		{key: "storage.backend",
			check: oneOf(string(domain.StorageSQLite), string(domain.StorageRedis), string(domain.StorageMemory)),
			show:  func(s *domain.Settings) string { return string(s.Storage.Backend) }},
		{key: "storage.data_dir",
			show: func(s *domain.Settings) string { return s.Storage.DataDir }},
		{key: keyRedisAddr,
			show: func(s *domain.Settings) string { return s.Storage.RedisAddr },
			env:  fixedEnv(envRedisAddr)},
		{key: "storage.redis_password", secret: true,
			show: func(s *domain.Settings) string { return s.Storage.RedisPassword }},
		{key: "storage.redis_db", kind: kindInt, check: nonNegativeInt,
			show: func(s *domain.Settings) string { return strconv.Itoa(s.Storage.RedisDB) }},
		{key: "storage.redis_prefix",
			show: func(s *domain.Settings) string { return s.Storage.RedisPrefix }},

		{key: "batch.topics_file",
			show: func(s *domain.Settings) string { return s.Batch.TopicsFile }},
		{key: "batch.delay", kind: kindDuration, check: nonNegativeDuration,
			show: func(s *domain.Settings) string { return s.Batch.Delay.String() }},
		{key: "batch.query_template",
			check: func(v any) error {
				if strings.Count(v.(string), "%s") != 1 {
					return fmt.Errorf("must contain exactly one %%s")
				}
				return nil
			},
			show: func(s *domain.Settings) string { return s.Batch.QueryTemplate }},

		{key: "taxonomy.path",
			show: func(s *domain.Settings) string { return s.TaxonomyPath }},

		{key: keySchedulerEnabled, kind: kindBool,
			showSched: func(c domain.SchedulerConfig) string { return strconv.FormatBool(c.Enabled) }},
		{key: keyTopicTaskEnabled, kind: kindBool,
			showSched: func(c domain.SchedulerConfig) string {
				return strconv.FormatBool(c.GetTaskConfig(domain.TaskIDTopicDiscovery).Enabled)
			}},
		{key: keyTopicTaskInterval, kind: kindDuration, check: positiveDuration,
			showSched: func(c domain.SchedulerConfig) string {
				return c.GetTaskConfig(domain.TaskIDTopicDiscovery).Interval.String()
			}},
	}

	for _, spec := range domain.KnownProviders() {
		table = append(table, providerSettingTable(spec)...)
	}
	return table
}

func providerSettingTable(spec domain.ProviderSpec) []setting {
	id := spec.ID
	prefix := "providers." + id + "."
	table := []setting{
		{key: prefix + "enabled", kind: kindBool,
			show: func(s *domain.Settings) string { return strconv.FormatBool(s.Providers[id].Enabled) }},
		{key: prefix + "api_key", secret: true,
			show: func(s *domain.Settings) string { return s.Providers[id].APIKey },
			env:  fixedEnv(spec.APIKeyEnv)},
		{key: prefix + "base_url",
			show: func(s *domain.Settings) string { return s.Providers[id].BaseURL }},
		{key: prefix + "depth",
			check: oneOf(string(domain.SearchDepthBasic), string(domain.SearchDepthDeep)),
			show:  func(s *domain.Settings) string { return string(s.Providers[id].Depth) }},
		{key: prefix + "timeout", kind: kindDuration, check: positiveDuration,
			show: func(s *domain.Settings) string { return formatDuration(s.Providers[id].Timeout) }},
	}
	for _, name := range spec.ExtraKeys {
		name := name
		table = append(table, setting{
			key:  prefix + "extra." + name,
			show: func(s *domain.Settings) string { return s.Providers[id].Extra[name] },
			env:  fixedEnv(spec.ExtraEnv[name]),
		})
	}
	return table
}
