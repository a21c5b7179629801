package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "tvly-1234567890abcdef",
			expected: "tvly...cdef",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range settingsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"show", "set", "keys", "check"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestSettingsShowCmd_MasksSecrets(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	env, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, env.config.Set("providers.tavily.api_key", "tvly-1234567890abcdef"))

	out, _, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "providers.tavily.api_key")
	assert.Contains(t, out, "tvly...cdef")
	assert.NotContains(t, out, "tvly-1234567890abcdef")
	assert.Contains(t, out, "[config]")
}

func TestSettingsSetCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	out, _, err := execute(t, "settings", "set", "discovery.max_results", "25")
	require.NoError(t, err)
	assert.Contains(t, out, "discovery.max_results set to 25")
	assert.Equal(t, 25, env.config.GetInt("discovery.max_results"))
}

func TestSettingsSetCmd_SecretIsMasked(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, _, err := execute(t, "settings", "set", "providers.firecrawl.api_key", "fc-abcdefghijklmnop")
	require.NoError(t, err)
	assert.Contains(t, out, "fc-a...mnop")
	assert.NotContains(t, out, "fc-abcdefghijklmnop")
}

func TestSettingsSetCmd_Errors(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, _, err := execute(t, "settings", "set", "no.such.key", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")

	_, _, err = execute(t, "settings", "set", "discovery.similarity_threshold", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in (0, 1]")

	_, _, err = execute(t, "settings", "set", "discovery.max_results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a value is required")
}

func TestSettingsKeysCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, _, err := execute(t, "settings", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "storage.backend\n")
	assert.Contains(t, out, "providers.github.api_key\n")
}

func TestSettingsCheckCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, _, err := execute(t, "settings", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "memory backend keeps nothing between runs")
	assert.Contains(t, out, "Configuration OK")
}

func TestSettingsCheckCmd_Fatal(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, env.config.Set("discovery.extraction_enabled", true))

	out, _, err := execute(t, "settings", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration has 1 error(s)")
	assert.Contains(t, out, "no LLM provider is configured")
}
