package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// Ensure DiscoveryOrchestrator implements the interface.
var _ driving.DiscoveryService = (*DiscoveryOrchestrator)(nil)

// DiscoveryOrchestrator drives a query through every pipeline stage:
// providers are queried in parallel, hits are normalised and optionally
// extracted and tagged, the pool is deduplicated against the store and
// the survivors are persisted.
type DiscoveryOrchestrator struct {
	providers  map[string]driven.Provider
	normaliser driven.HitNormaliser
	extractor  driven.Extractor
	tagger     driven.Tagger
	similarity driven.Similarity
	store      driven.ItemStore
	observer   driven.RunObserver
	schema     domain.ContentSchema
	now        func() time.Time

	// Status tracking
	mu         sync.RWMutex
	activeRuns map[string]*domain.RunProgress
}

// NewDiscoveryOrchestrator creates a new discovery orchestrator.
// The extractor, tagger, similarity and observer are optional. Without an
// extractor items keep their normaliser defaults; without a similarity
// near-duplicates are found by fingerprint.
func NewDiscoveryOrchestrator(
	providers []driven.Provider,
	normaliser driven.HitNormaliser,
	extractor driven.Extractor,
	tagger driven.Tagger,
	similarity driven.Similarity,
	store driven.ItemStore,
	observer driven.RunObserver,
) *DiscoveryOrchestrator {
	byID := make(map[string]driven.Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			byID[p.ID()] = p
		}
	}
	return &DiscoveryOrchestrator{
		providers:  byID,
		normaliser: normaliser,
		extractor:  extractor,
		tagger:     tagger,
		similarity: similarity,
		store:      store,
		observer:   observer,
		schema:     domain.DefaultContentSchema(),
		now:        time.Now,
		activeRuns: make(map[string]*domain.RunProgress),
	}
}

// SetClock replaces the clock used to stamp hits and runs.
func (o *DiscoveryOrchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// SetSchema replaces the schema passed to the extractor.
func (o *DiscoveryOrchestrator) SetSchema(schema domain.ContentSchema) {
	o.schema = schema
}

// Providers returns the ids of every provider a run may use, sorted.
func (o *DiscoveryOrchestrator) Providers() []string {
	ids := make([]string, 0, len(o.providers))
	for id := range o.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// candidate is one valid hit moving through the pipeline.
type candidate struct {
	raw  domain.RawHit
	text string
	item *domain.Item
}

// Run executes one discovery run.
//
// Provider and extraction work share the run deadline; deduplication and
// persistence use ctx only, so everything found before the deadline is
// still stored. The run fails only when no provider succeeds, and ends
// partial when any provider failed or the deadline cut work short.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *DiscoveryOrchestrator) Run(ctx context.Context, query string, cfg domain.RunConfig) (*domain.RunResult, error) {
	// 1. Validate the request
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "query is required"}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	providers, err := o.selectProviders(cfg.Providers)
	if err != nil {
		return nil, err
	}
	if o.store == nil {
		return nil, fmt.Errorf("run: item store not configured")
	}

	// 2. Initialise status tracking
	runID := uuid.NewString()
	result := domain.NewRunResult(runID, query)
	result.StartedAt = o.now().UTC()
	machine := newRunMachine()
	o.setStatus(&domain.RunProgress{
		RunID:          runID,
		Query:          query,
		Status:         machine.State(),
		ProvidersTotal: len(providers),
		StartedAt:      result.StartedAt,
	})
	defer func() {
		result.FinishedAt = o.now().UTC()
		o.clearStatus(runID)
		if o.observer != nil {
			o.observer.ObserveRun(result)
		}
		logger.Info("Run %s finished %s: %d new, %d merged in %s",
			runID, result.Status, result.ItemsNew, result.ItemsMerged, result.Duration().Round(time.Millisecond))
	}()

	logger.Info("Starting run %s for %q across %d provider(s)", runID, query, len(providers))

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	// 3. Query providers in parallel
	if err := o.transition(machine, result, domain.RunStatusQuerying); err != nil {
		return result, err
	}
	hits := o.queryProviders(runCtx, runID, query, providers, cfg, result)
	result.TotalCandidates = len(hits)
	o.noteTimeout(runCtx, ctx, cfg, result, domain.RunStatusQuerying)

	if len(result.ProviderErrors) == len(providers) {
		if err := o.transition(machine, result, domain.RunStatusFailed); err != nil {
			return result, err
		}
		logger.Warn("Run %s failed: every provider failed", runID)
		return result, nil
	}

	// 4. Normalise and validate hits
	if err := o.transition(machine, result, domain.RunStatusNormalizing); err != nil {
		return result, err
	}
	candidates := o.normalise(hits, result)
	o.updateStatus(runID, func(p *domain.RunProgress) {
		p.Candidates = len(candidates)
	})

	// 5. Extract and tag, bounded by ExtractionConcurrency
	extract := cfg.ExtractionEnabled && o.extractor != nil
	tag := cfg.TaggingEnabled && o.tagger != nil
	if extract || tag {
		if err := o.transition(machine, result, domain.RunStatusExtracting); err != nil {
			return result, err
		}
		o.enrich(runCtx, runID, candidates, cfg, extract, tag, result)
		o.noteTimeout(runCtx, ctx, cfg, result, domain.RunStatusExtracting)
	}

	// 6. Deduplicate against the pool and the store
	if err := o.transition(machine, result, domain.RunStatusDeduplicating); err != nil {
		return result, err
	}
	items := make([]*domain.Item, len(candidates))
	for i, c := range candidates {
		items[i] = c.item
	}
	dedup := NewDeduplicator(o.store, o.similarity, DedupConfig{
		Threshold:    cfg.SimilarityThreshold,
		RecentWindow: cfg.RecentWindow,
	})
	deduped, err := dedup.Deduplicate(ctx, items)
	if err != nil {
		err = fmt.Errorf("deduplicate: %w", err)
		return result, errors.Join(err, o.transition(machine, result, domain.RunStatusPartial))
	}
	result.ItemsNew = deduped.New
	result.ItemsMerged = deduped.Merged
	result.Outcomes = deduped.Outcomes
	result.Warnings = append(result.Warnings, deduped.Warnings...)
	for id, msg := range deduped.LookupErrors {
		result.StoreErrors[id] = "lookup: " + msg
	}

	// 7. Persist each surviving item
	if err := o.transition(machine, result, domain.RunStatusPersisting); err != nil {
		return result, err
	}
	o.persist(ctx, deduped.Items, result)

	final := domain.RunStatusDone
	if len(result.ProviderErrors) > 0 || result.TimedOut {
		final = domain.RunStatusPartial
	}
	if err := o.transition(machine, result, final); err != nil {
		return result, err
	}
	return result, nil
}

// selectProviders resolves the requested ids. Empty means all.
func (o *DiscoveryOrchestrator) selectProviders(ids []string) ([]driven.Provider, error) {
	if len(ids) == 0 {
		ids = o.Providers()
	}
	seen := make(map[string]bool)
	var selected []driven.Provider
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		p, ok := o.providers[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
		}
		selected = append(selected, p)
	}
	if len(selected) == 0 {
		return nil, domain.ErrNoProviders
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].ID() < selected[j].ID()
	})
	return selected, nil
}

// queryProviders fans the query out and waits for every provider.
// Each provider fails on its own; failures are recorded on result.
func (o *DiscoveryOrchestrator) queryProviders(
	runCtx context.Context,
	runID, query string,
	providers []driven.Provider,
	cfg domain.RunConfig,
	result *domain.RunResult,
) []domain.RawHit {
	type outcome struct {
		hits []domain.RawHit
		err  error
	}
	outcomes := make([]outcome, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p driven.Provider) {
			defer wg.Done()
			hits, err := o.searchProvider(runCtx, p, query, cfg)
			outcomes[i] = outcome{hits: hits, err: err}
			o.updateStatus(runID, func(pr *domain.RunProgress) {
				pr.ProvidersDone++
			})
		}(i, p)
	}
	wg.Wait()

	var hits []domain.RawHit
	for i, out := range outcomes {
		id := providers[i].ID()
		if out.err != nil {
			logger.Warn("Provider %s failed: %v", id, out.err)
			result.ProviderErrors[id] = out.err.Error()
			continue
		}
		logger.Debug("Provider %s returned %d hit(s)", id, len(out.hits))
		hits = append(hits, out.hits...)
	}
	return hits
}

// searchProvider runs one provider under its own timeout. A provider that
// ignores cancellation is abandoned when the timeout fires.
func (o *DiscoveryOrchestrator) searchProvider(
	runCtx context.Context,
	p driven.Provider,
	query string,
	cfg domain.RunConfig,
) ([]domain.RawHit, error) {
	id := p.ID()
	opts := cfg.OptionsFor(id)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultProviderTimeout
	}
	ctx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	type searchResult struct {
		hits []domain.RawHit
		err  error
	}
	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchResult{err: fmt.Errorf("provider panicked: %v", r)}
			}
		}()
		hits, err := p.Search(ctx, query, cfg.MaxResults, opts)
		done <- searchResult{hits: hits, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, domain.NewProviderError(id, domain.ProviderErrorTimeout, ctx.Err())
	}
	if res.err != nil {
		return nil, domain.AsProviderError(id, res.err)
	}

	hits := res.hits
	if len(hits) > cfg.MaxResults {
		hits = hits[:cfg.MaxResults]
	}
	fetched := o.now().UTC()
	out := make([]domain.RawHit, len(hits))
	for i, h := range hits {
		h.ProviderID = id
		if h.FetchedAt.IsZero() {
			h.FetchedAt = fetched
		}
		out[i] = h
	}
	return out, nil
}

// normalise turns hits into candidates, dropping and counting invalid ones.
func (o *DiscoveryOrchestrator) normalise(hits []domain.RawHit, result *domain.RunResult) []*candidate {
	candidates := make([]*candidate, 0, len(hits))
	for _, hit := range hits {
		item, err := o.normaliser.Normalise(hit, nil)
		if err != nil {
			result.ValidationErrors++
			logger.Debug("Dropping hit from %s: %v", hit.ProviderID, err)
			continue
		}
		candidates = append(candidates, &candidate{
			raw:  hit,
			text: o.normaliser.Text(hit),
			item: item,
		})
	}
	return candidates
}

// enrich runs extraction and tagging over the candidates with at most
// cfg.ExtractionConcurrency calls in flight. Candidates not reached before
// the run deadline keep their defaults.
func (o *DiscoveryOrchestrator) enrich(
	runCtx context.Context,
	runID string,
	candidates []*candidate,
	cfg domain.RunConfig,
	extract, tag bool,
	result *domain.RunResult,
) {
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		extractErrs int
		tagErrs     int
	)
	sem := make(chan struct{}, cfg.ExtractionConcurrency)

dispatch:
	for _, c := range candidates {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(c *candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			extractFailed, tagFailed := o.enrichOne(runCtx, c, extract, tag)
			mu.Lock()
			if extractFailed {
				extractErrs++
			}
			if tagFailed {
				tagErrs++
			}
			mu.Unlock()
			o.updateStatus(runID, func(p *domain.RunProgress) {
				p.Extracted++
			})
		}(c)
	}
	wg.Wait()

	result.ExtractionErrors += extractErrs
	result.TaggingErrors += tagErrs
}

// enrichOne extracts and tags a single candidate in place.
func (o *DiscoveryOrchestrator) enrichOne(ctx context.Context, c *candidate, extract, tag bool) (extractFailed, tagFailed bool) {
	if extract {
		partial, err := o.extractor.Extract(ctx, c.text, o.schema)
		switch {
		case err != nil:
			extractFailed = true
			logger.Debug("Extraction failed for %s: %v", c.item.ID, err)
		case !partial.IsEmpty():
			item, err := o.normaliser.Normalise(c.raw, partial)
			if err != nil {
				extractFailed = true
				logger.Debug("Extracted attributes rejected for %s: %v", c.item.ID, err)
			} else {
				c.item = item
			}
		}
	}
	if tag {
		tags, err := o.tagger.Tag(ctx, c.text)
		if err != nil {
			tagFailed = true
			logger.Debug("Tagging failed for %s: %v", c.item.ID, err)
		} else {
			c.item.Tags = domain.UniqueSorted(tags)
		}
	}
	return extractFailed, tagFailed
}

// persist upserts every item. A failed write is recorded and the rest continue.
func (o *DiscoveryOrchestrator) persist(ctx context.Context, items []*domain.Item, result *domain.RunResult) {
	for _, item := range items {
		stored, err := o.store.Upsert(ctx, item)
		if err != nil {
			storeErr := &domain.StoreError{ItemID: item.ID, Op: "upsert", Cause: err}
			logger.Warn("%v", storeErr)
			result.StoreErrors[item.ID] = storeErr.Error()
			continue
		}
		result.Items = append(result.Items, stored)
	}
}

// noteTimeout records that the run deadline, not the caller, ended a stage.
func (o *DiscoveryOrchestrator) noteTimeout(
	runCtx, ctx context.Context,
	cfg domain.RunConfig,
	result *domain.RunResult,
	stage domain.RunStatus,
) {
	if result.TimedOut || ctx.Err() != nil || !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return
	}
	timeoutErr := &domain.RunTimeoutError{Stage: stage, Timeout: cfg.RunTimeout}
	logger.Warn("Run %s: %v", result.RunID, timeoutErr)
	result.TimedOut = true
	result.Warnings = append(result.Warnings, timeoutErr.Error())
}

func (o *DiscoveryOrchestrator) transition(machine *runMachine, result *domain.RunResult, next domain.RunStatus) error {
	if err := machine.Transition(next); err != nil {
		return err
	}
	result.Status = next
	o.updateStatus(result.RunID, func(p *domain.RunProgress) {
		p.Status = next
	})
	return nil
}

// Status returns live progress for an active run.
func (o *DiscoveryOrchestrator) Status(_ context.Context, runID string) (*domain.RunProgress, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.activeRuns[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Active returns progress for every run in flight, oldest first.
func (o *DiscoveryOrchestrator) Active() []domain.RunProgress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.RunProgress, 0, len(o.activeRuns))
	for _, p := range o.activeRuns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

func (o *DiscoveryOrchestrator) setStatus(p *domain.RunProgress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeRuns[p.RunID] = p
}

func (o *DiscoveryOrchestrator) updateStatus(runID string, fn func(*domain.RunProgress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.activeRuns[runID]; ok {
		fn(p)
	}
}

func (o *DiscoveryOrchestrator) clearStatus(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}
