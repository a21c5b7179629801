package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/providers"
)

// appMockProvider returns fixed hits.
type appMockProvider struct {
	id   string
	hits []domain.RawHit
}

func (p *appMockProvider) ID() string { return p.id }

func (p *appMockProvider) Search(context.Context, string, int, domain.ProviderOptions) ([]domain.RawHit, error) {
	return p.hits, nil
}

func testRegistry() *providers.Registry {
	r := providers.NewRegistry()
	r.Register("mock", func(domain.ProviderSettings) (driven.Provider, error) {
		return &appMockProvider{id: "mock", hits: []domain.RawHit{
			{SourceURL: "https://example.com/llama", Title: "Llama 3", Snippet: "An open model."},
			{SourceURL: "https://example.com/ollama", Title: "Ollama", Snippet: "Run models locally."},
		}}, nil
	})
	return r
}

func testSettings(t *testing.T) domain.Settings {
	t.Helper()
	s := domain.DefaultSettings()
	s.Storage.Backend = domain.StorageMemory
	s.Storage.DataDir = t.TempDir()
	s.Providers = map[string]domain.ProviderSettings{"mock": {Enabled: true}}
	return s
}

func TestNew_RunsDiscovery(t *testing.T) {
	a, err := New(testSettings(t), Options{Registry: testRegistry(), ConfigDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"mock"}, a.Discovery.Providers())
	assert.Empty(t, a.Warnings)

	result, err := a.Discovery.Run(context.Background(), "open models", a.Settings.RunConfig())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusDone, result.Status)
	assert.Equal(t, 2, result.ItemsNew)

	page, err := a.Items.List(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestNew_NoProviders(t *testing.T) {
	s := testSettings(t)
	s.Providers = nil

	_, err := New(s, Options{Registry: testRegistry()})
	assert.ErrorIs(t, err, domain.ErrNoProviders)
}

func TestNew_BrokenProviderIsWarning(t *testing.T) {
	s := testSettings(t)
	s.Providers["tavily"] = domain.ProviderSettings{Enabled: true}

	a, err := New(s, Options{Registry: testRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "providers were skipped")
}

func TestNew_AIUnavailableIsWarning(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	s := testSettings(t)
	s.Discovery.ExtractionEnabled = true
	s.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2", BaseURL: down.URL}

	a, err := New(s, Options{Registry: testRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotEmpty(t, a.Warnings)
	assert.Contains(t, a.Warnings[0], "extraction and tagging disabled")
}

func TestNew_StorageBackends(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		s := testSettings(t)
		s.Storage.Backend = domain.StorageSQLite

		a, err := New(s, Options{Registry: testRegistry()})
		require.NoError(t, err)
		defer a.Close()

		_, err = os.Stat(filepath.Join(s.Storage.DataDir, "items.db"))
		assert.NoError(t, err)

		sched, err := a.SchedulerStore()
		require.NoError(t, err)
		assert.NotNil(t, sched)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s := testSettings(t)
		s.Storage.Backend = domain.StorageRedis
		s.Storage.RedisAddr = mr.Addr()

		a, err := New(s, Options{Registry: testRegistry()})
		require.NoError(t, err)
		defer a.Close()

		_, err = a.Discovery.Run(context.Background(), "open models", a.Settings.RunConfig())
		require.NoError(t, err)
		assert.NotEmpty(t, mr.Keys())

		// Scheduler state stays in local SQLite
		sched, err := a.SchedulerStore()
		require.NoError(t, err)
		assert.NotNil(t, sched)
	})

	t.Run("unknown", func(t *testing.T) {
		s := testSettings(t)
		s.Storage.Backend = "cassandra"

		_, err := New(s, Options{Registry: testRegistry()})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestApp_CloseTwice(t *testing.T) {
	a, err := New(testSettings(t), Options{Registry: testRegistry()})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestApp_TopicSource(t *testing.T) {
	a, err := New(testSettings(t), Options{Registry: testRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	t.Run("built-in topics", func(t *testing.T) {
		topics, opts, err := a.TopicSource(NewTopics("", "", true))()
		require.NoError(t, err)
		assert.Equal(t, domain.TestTopics(), topics)
		assert.Equal(t, domain.DefaultBatchQueryTemplate, opts.QueryTemplate)
		assert.Equal(t, 2*time.Second, opts.Delay)
	})

	t.Run("file template wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "topics.yaml")
		require.NoError(t, os.WriteFile(path, []byte("query_template: \"new %s\"\ntopics:\n  - agents\n"), 0600))

		topics, opts, err := a.TopicSource(NewTopics(path, "", false))()
		require.NoError(t, err)
		assert.Equal(t, []string{"agents"}, topics)
		assert.Equal(t, "new %s", opts.QueryTemplate)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := a.TopicSource(NewTopics(filepath.Join(t.TempDir(), "none.yaml"), "", false))()
		assert.Error(t, err)
	})
}

func TestTopics_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- agents\n"), 0600))

	topics := NewTopics(path, "", false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, topics.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("- agents\n- vision\n"), 0600))
	assert.Eventually(t, func() bool {
		list, _, err := topics.Topics()
		return err == nil && len(list) == 2
	}, 5*time.Second, 50*time.Millisecond)

	// A broken edit keeps the last good list
	require.NoError(t, os.WriteFile(path, []byte("topics: [unclosed\n"), 0600))
	time.Sleep(2 * topicReloadDebounce)
	list, _, err := topics.Topics()
	require.NoError(t, err)
	assert.Equal(t, []string{"agents", "vision"}, list)
}
