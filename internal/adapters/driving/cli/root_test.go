package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/ai"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mosaic/internal/app"
	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/core/services"
	"github.com/custodia-labs/mosaic/internal/providers"
)

// cliMockProvider returns fixed hits, or fails when err is set.
type cliMockProvider struct {
	id   string
	hits []domain.RawHit
	err  error
}

func (p *cliMockProvider) ID() string { return p.id }

func (p *cliMockProvider) Search(context.Context, string, int, domain.ProviderOptions) ([]domain.RawHit, error) {
	return p.hits, p.err
}

// testEnv is the state shared by the commands of one test.
type testEnv struct {
	config *memory.ConfigStore
	store  *memory.ItemStore
}

// setupTestServices points every command at in-memory services with a
// single "mock" provider. failing makes that provider fail.
func setupTestServices(failing ...bool) (*testEnv, func()) {
	oldSettings := settingsService
	oldOpen := openApp

	env := &testEnv{
		config: memory.NewConfigStore(map[string]any{
			"storage.backend": "memory",
			"batch.delay":     "0s",
		}),
		store: memory.NewItemStore(),
	}
	settingsService = services.NewSettingsService(env.config, ai.NewConfigValidator())

	var providerErr error
	if len(failing) > 0 && failing[0] {
		providerErr = domain.NewProviderError("mock", domain.ProviderErrorNetwork, context.DeadlineExceeded)
	}
	registry := providers.NewRegistry()
	registry.Register("mock", func(domain.ProviderSettings) (driven.Provider, error) {
		return &cliMockProvider{id: "mock", err: providerErr, hits: []domain.RawHit{
			{SourceURL: "https://github.com/ollama/ollama", Title: "Ollama", Snippet: "Run large language models locally."},
			{SourceURL: "https://arxiv.org/abs/1706.03762", Title: "Attention Is All You Need", Snippet: "The transformer paper."},
		}}, nil
	})
	openApp = func(settings domain.Settings) (*app.App, error) {
		settings.Providers = map[string]domain.ProviderSettings{"mock": {Enabled: true}}
		return app.New(settings, app.Options{Registry: registry, ItemStore: env.store})
	}

	return env, func() {
		settingsService = oldSettings
		openApp = oldOpen
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag to its default so tests sharing rootCmd
// do not see each other's flags.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns stdout and stderr.
// Flags start from their defaults on every call.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "mosaic", rootCmd.Use)
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"discover", "batch", "items", "settings", "daemon", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config-dir"))
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
}

func TestInitServices_BuildsSettingsFromConfigDir(t *testing.T) {
	oldSettings := settingsService
	oldDir := configDir
	defer func() {
		settingsService = oldSettings
		configDir = oldDir
	}()

	settingsService = nil
	configDir = t.TempDir()
	require.NoError(t, initServices(rootCmd, nil))
	require.NotNil(t, settingsService)

	require.NoError(t, settingsService.Set("discovery.max_results", "7"))
	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, settings.Discovery.MaxResults)
}

func TestExecute_FlagsDoNotCarryOver(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, _, err := execute(t, "items", "list", "--json", "--page-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"page_size": 1`)

	out, _, err = execute(t, "items", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No items found.")
	assert.NotContains(t, out, "page_size")
}

func TestLoadApp_NoSettings(t *testing.T) {
	oldSettings := settingsService
	settingsService = nil
	defer func() { settingsService = oldSettings }()

	_, err := loadApp(rootCmd)
	assert.EqualError(t, err, "settings service not configured")
}
