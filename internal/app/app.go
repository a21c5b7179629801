// Package app assembles the discovery pipeline from a settings snapshot.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/ai"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/metrics"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/core/services"
	"github.com/custodia-labs/mosaic/internal/normalisers"
	"github.com/custodia-labs/mosaic/internal/normalisers/hit"
	"github.com/custodia-labs/mosaic/internal/providers"
)

// Options tune how the pipeline is built.
type Options struct {
	// ConfigDir holds prompts/. Empty means ~/.mosaic.
	ConfigDir string

	// Registry supplies provider builders. Nil means every built-in provider.
	Registry driven.ProviderRegistry

	// ItemStore replaces the store the settings select.
	ItemStore driven.ItemStore
}

// App holds the wired services. Close releases every backend.
type App struct {
	Settings  domain.Settings
	Discovery *services.DiscoveryOrchestrator
	Batch     *services.BatchRunner
	Items     *services.ItemService
	Metrics   *metrics.RunMetrics

	// Warnings are non-fatal problems met while building.
	Warnings []string

	store     driven.ItemStore
	ownsStore bool
	sqlite    *sqlite.Store
	ai        *ai.InitResult
	dataDir   string

	closeOnce sync.Once
}

// New builds the pipeline. It fails when no provider or no store can be
// built; missing AI backends only disable the features that need them.
func New(settings domain.Settings, opts Options) (*App, error) {
	a := &App{Settings: settings, dataDir: settings.Storage.DataDir}

	store := opts.ItemStore
	if store == nil {
		var err error
		if store, err = a.openItemStore(); err != nil {
			return nil, err
		}
	}
	a.store = store

	registry := opts.Registry
	if registry == nil {
		registry = providers.DefaultRegistry()
	}
	built, err := providers.BuildEnabled(registry, settings.Providers)
	if err != nil {
		a.warn("some providers were skipped: %v", err)
	}
	if len(built) == 0 {
		a.Close()
		return nil, fmt.Errorf("%w: enable one with 'mosaic settings set providers.<id>.enabled true'", domain.ErrNoProviders)
	}

	a.ai = ai.Initialise(settings)
	a.Warnings = append(a.Warnings, a.ai.Warnings...)

	var similarity driven.Similarity = services.NewFingerprintSimilarity()
	if a.ai.EmbeddingService != nil {
		similarity = services.NewEmbeddingSimilarity(a.ai.EmbeddingService)
	}

	var extractor driven.Extractor
	var tagger driven.Tagger
	if llm := a.ai.LLMService; llm != nil {
		prompts := a.promptStore(opts.ConfigDir)

		e := services.NewLLMExtractor(llm)
		if prompts != nil {
			e.SetPromptStore(prompts)
		}
		extractor = e

		taxonomy, err := file.LoadTaxonomy(settings.TaxonomyPath)
		if err != nil {
			a.warn("using built-in taxonomy: %v", err)
			taxonomy = domain.DefaultTaxonomy()
		}
		t := services.NewLLMTagger(llm, taxonomy)
		if prompts != nil {
			t.SetPromptStore(prompts)
		}
		tagger = t
	}

	a.Metrics = metrics.NewRunMetrics()
	a.Discovery = services.NewDiscoveryOrchestrator(
		built,
		hit.New(normalisers.DefaultRegistry()),
		extractor,
		tagger,
		similarity,
		store,
		a.Metrics,
	)
	a.Batch = services.NewBatchRunner(a.Discovery)
	a.Items = services.NewItemService(store, similarity)
	return a, nil
}

func (a *App) warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

func (a *App) openItemStore() (driven.ItemStore, error) {
	s := a.Settings.Storage
	switch s.Backend {
	case domain.StorageMemory:
		a.ownsStore = true
		return memory.NewItemStore(), nil
	case domain.StorageRedis:
		store, err := redis.NewItemStore(redis.Config{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		a.ownsStore = true
		return store, nil
	case domain.StorageSQLite, "":
		db, err := a.openSQLite()
		if err != nil {
			return nil, err
		}
		return db.ItemStore(), nil
	default:
		return nil, fmt.Errorf("%w: storage backend %q", domain.ErrInvalidInput, s.Backend)
	}
}

func (a *App) openSQLite() (*sqlite.Store, error) {
	if a.sqlite != nil {
		return a.sqlite, nil
	}
	db, err := sqlite.NewStore(a.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	a.sqlite = db
	return db, nil
}

func (a *App) promptStore(configDir string) driven.PromptStore {
	dir := ""
	if configDir != "" {
		dir = filepath.Join(configDir, "prompts")
	}
	prompts, err := file.NewPromptStore(dir)
	if err != nil {
		a.warn("using built-in prompts: %v", err)
		return nil
	}
	return prompts
}

// SchedulerStore returns the local SQLite scheduler store. Scheduler
// state stays local whichever item backend is selected.
func (a *App) SchedulerStore() (driven.SchedulerStore, error) {
	db, err := a.openSQLite()
	if err != nil {
		return nil, err
	}
	return db.SchedulerStore(), nil
}

// BatchOptions returns batch options drawn from the settings.
func (a *App) BatchOptions() domain.BatchOptions {
	return domain.BatchOptions{
		Run:           a.Settings.RunConfig(),
		Delay:         a.Settings.Batch.Delay,
		QueryTemplate: a.Settings.Batch.QueryTemplate,
	}
}

// Close releases the store, the database and the AI services. A store
// passed in Options is left open.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.ai != nil {
			a.ai.Close()
		}
		if a.store != nil && a.ownsStore {
			errs = append(errs, a.store.Close())
		}
		if a.sqlite != nil {
			errs = append(errs, a.sqlite.Close())
		}
	})
	return errors.Join(errs...)
}

// TopicSource adapts topics for the scheduler. The topic file's template
// wins over the configured one.
func (a *App) TopicSource(topics *Topics) services.TopicSource {
	return func() ([]string, domain.BatchOptions, error) {
		list, template, err := topics.Topics()
		if err != nil {
			return nil, domain.BatchOptions{}, err
		}
		opts := a.BatchOptions()
		if template != "" {
			opts.QueryTemplate = template
		}
		return list, opts, nil
	}
}
