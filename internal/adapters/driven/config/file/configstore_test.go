package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handEdited is a config file the way a user would write it.
const handEdited = `
[discovery]
max_results = 25
similarity_threshold = 0.88
run_timeout = "90s"
extraction_enabled = true

[storage]
backend = "redis"
redis_db = 2

[batch]
delay = 3

[providers.tavily]
api_key = "tvly-abc"
enabled = true

[providers.google.extra]
cx = "0123:abc"

[scheduler.topic_discovery]
interval = "6h"
`

func newTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "mosaic")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	// nothing is written until a value is set
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mosaic", "config.toml"), store.Path())
}

func TestNewConfigStore_Errors(t *testing.T) {
	_, err := NewConfigStore("/dev/null/mosaic")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[discovery\nmax_results = "), 0600))
	_, err = NewConfigStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestConfigStore_ReadsHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(handEdited), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 25, store.GetInt("discovery.max_results"))
	assert.InDelta(t, 0.88, store.GetFloat("discovery.similarity_threshold"), 1e-9)
	assert.Equal(t, 90*time.Second, store.GetDuration("discovery.run_timeout"))
	assert.True(t, store.GetBool("discovery.extraction_enabled"))
	assert.Equal(t, "redis", store.GetString("storage.backend"))
	assert.Equal(t, "2", store.GetString("storage.redis_db"))
	assert.Equal(t, 3*time.Second, store.GetDuration("batch.delay"))
	assert.Equal(t, "tvly-abc", store.GetString("providers.tavily.api_key"))
	assert.Equal(t, "0123:abc", store.GetString("providers.google.extra.cx"))
	assert.Equal(t, 6*time.Hour, store.GetDuration("scheduler.topic_discovery.interval"))
	assert.Len(t, store.Keys(), 11)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("storage.backend", "sqlite"))
	require.NoError(t, store.Set("discovery.max_results", int64(10)))
	require.NoError(t, store.Set("similarity.threshold", 0.92))
	require.NoError(t, store.Set("providers.arxiv.enabled", false))
	require.NoError(t, store.Set("discovery.providers", []string{"tavily", "arxiv"}))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("storage.backend"), "sqlite"},
		{"int as string", store.GetString("discovery.max_results"), "10"},
		{"float as string", store.GetString("similarity.threshold"), "0.92"},
		{"slice as string", store.GetString("discovery.providers"), ""},
		{"int", store.GetInt("discovery.max_results"), 10},
		{"string as int", store.GetInt("storage.backend"), 0},
		{"int as float", store.GetFloat("discovery.max_results"), 10.0},
		{"string as float", store.GetFloat("storage.backend"), 0.0},
		{"bool", store.GetBool("providers.arxiv.enabled"), false},
		{"string as bool", store.GetBool("storage.backend"), false},
		{"bad duration", store.GetDuration("storage.backend"), time.Duration(0)},
		{"slice", store.GetStringSlice("discovery.providers"), []string{"tavily", "arxiv"}},
		{"missing string", store.GetString("llm.model"), ""},
		{"missing int", store.GetInt("llm.max_tokens"), 0},
		{"missing slice", store.GetStringSlice("llm.stop"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	_, ok := store.Get("llm.model")
	assert.False(t, ok)
}

func TestConfigStore_SetPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("providers.tavily.api_key", "tvly-1"))
	require.NoError(t, store.Set("providers.tavily.enabled", true))
	require.NoError(t, store.Set("discovery.max_results", int64(10)))
	require.NoError(t, store.Set("discovery.max_results", int64(15)))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[providers.tavily]")
	assert.Contains(t, string(raw), "[discovery]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "tvly-1", reloaded.GetString("providers.tavily.api_key"))
	assert.True(t, reloaded.GetBool("providers.tavily.enabled"))
	assert.Equal(t, 15, reloaded.GetInt("discovery.max_results"))
	assert.Equal(t, []string{"discovery.max_results", "providers.tavily.api_key", "providers.tavily.enabled"}, reloaded.Keys())
}

func TestConfigStore_SaveWritesLoadedData(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(handEdited), 0600))
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, store.Keys(), reloaded.Keys())
	assert.Equal(t, "0123:abc", reloaded.GetString("providers.google.extra.cx"))
}

func TestConfigStore_SetFailureRollsBack(t *testing.T) {
	t.Run("key conflicts with a table", func(t *testing.T) {
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("llm", "openai"))

		require.Error(t, store.Set("llm.model", "gpt-4o-mini"))
		_, ok := store.Get("llm.model")
		assert.False(t, ok)
		assert.Equal(t, "openai", store.GetString("llm"))
	})

	t.Run("value cannot be encoded", func(t *testing.T) {
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("storage.backend", "sqlite"))

		require.Error(t, store.Set("storage.backend", make(chan int)))
		assert.Equal(t, "sqlite", store.GetString("storage.backend"))
	})

	t.Run("file cannot be written", func(t *testing.T) {
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("storage.backend", "sqlite"))
		require.NoError(t, os.Remove(store.Path()))
		require.NoError(t, os.Mkdir(store.Path(), 0700))

		require.Error(t, store.Set("storage.backend", "redis"))
		assert.Equal(t, "sqlite", store.GetString("storage.backend"))
	})
}

func TestConfigStore_Load(t *testing.T) {
	t.Run("comments only", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("# mosaic settings\n\n"), 0600))
		store, err := NewConfigStore(dir)
		require.NoError(t, err)
		assert.Empty(t, store.Keys())
	})

	t.Run("picks up external edits", func(t *testing.T) {
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("storage.backend", "sqlite"))
		require.NoError(t, os.WriteFile(store.Path(), []byte("[storage]\nbackend = \"memory\"\n"), 0600))

		require.NoError(t, store.Load())
		assert.Equal(t, "memory", store.GetString("storage.backend"))
	})

	t.Run("broken edit", func(t *testing.T) {
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("storage.backend", "sqlite"))
		require.NoError(t, os.WriteFile(store.Path(), []byte("storage = ]["), 0600))

		assert.Error(t, store.Load())
	})

	t.Run("unreadable file", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores file permissions")
		}
		store := newTestConfigStore(t)
		require.NoError(t, store.Set("storage.backend", "sqlite"))
		require.NoError(t, os.Chmod(store.Path(), 0000))
		defer func() { _ = os.Chmod(store.Path(), 0600) }()

		err := store.Load()
		require.Error(t, err)
		assert.False(t, os.IsNotExist(err))
	})
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := newTestConfigStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("providers.p%d.enabled", i)
			_ = store.Set(key, i%2 == 0)
			_ = store.GetBool(key)
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 10)
	assert.True(t, store.GetBool("providers.p4.enabled"))
}

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"discovery": map[string]any{"max_results": int64(10)},
		"providers": map[string]any{
			"github": map[string]any{"extra": map[string]any{"qualifiers": "language:go"}},
		},
		"version": "1",
	}
	flat := flattenMap(nested, "")
	assert.Equal(t, map[string]any{
		"discovery.max_results":             int64(10),
		"providers.github.extra.qualifiers": "language:go",
		"version":                           "1",
	}, flat)

	back, err := unflattenMap(flat)
	require.NoError(t, err)
	assert.Equal(t, nested, back)

	_, err = unflattenMap(map[string]any{"storage": "sqlite", "storage.backend": "redis"})
	assert.Error(t, err)
}
