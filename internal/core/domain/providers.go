package domain

// ProviderSpec describes a built-in search provider for configuration.
type ProviderSpec struct {
	// ID matches the provider's registry id.
	ID string

	// Name is shown in settings output.
	Name string

	// APIKeyEnv is the environment variable that overrides the API key.
	APIKeyEnv string

	// RequiresAPIKey is true when the backend rejects anonymous calls.
	RequiresAPIKey bool

	// EnabledByDefault enables the provider without any configuration.
	// Keyed providers are also enabled once a key is present.
	EnabledByDefault bool

	// ExtraKeys lists the provider-specific option names it reads.
	ExtraKeys []string

	// ExtraEnv maps option names to overriding environment variables.
	ExtraEnv map[string]string

	// RequiredExtras must be set for the provider to build.
	RequiredExtras []string
}

// KnownProviders returns the built-in providers in id order.
func KnownProviders() []ProviderSpec {
	return []ProviderSpec{
		{
			ID:               "arxiv",
			Name:             "arXiv",
			EnabledByDefault: true,
			ExtraKeys:        []string{"searchtype", "requests_per_second"},
		},
		{
			ID:             "firecrawl",
			Name:           "Firecrawl",
			APIKeyEnv:      "FIRECRAWL_API_KEY",
			RequiresAPIKey: true,
			ExtraKeys:      []string{"lang"},
		},
		{
			ID:        "github",
			Name:      "GitHub",
			APIKeyEnv: "GITHUB_TOKEN",
			ExtraKeys: []string{"qualifiers", "requests_per_second"},
		},
		{
			ID:             "google",
			Name:           "Google Programmable Search",
			APIKeyEnv:      "GOOGLE_API_KEY",
			RequiresAPIKey: true,
			ExtraKeys:      []string{"cx", "date_restrict"},
			ExtraEnv:       map[string]string{"cx": "GOOGLE_CSE_ID"},
			RequiredExtras: []string{"cx"},
		},
		{
			ID:             "tavily",
			Name:           "Tavily",
			APIKeyEnv:      "TAVILY_API_KEY",
			RequiresAPIKey: true,
			ExtraKeys:      []string{"topic"},
		},
	}
}

// LookupProvider finds a built-in provider by id.
func LookupProvider(id string) (ProviderSpec, bool) {
	for _, p := range KnownProviders() {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderSpec{}, false
}
