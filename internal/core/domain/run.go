package domain

import (
	"fmt"
	"time"
)

// RunStatus is the state of a discovery run.
type RunStatus string

// Run states. Done, Partial and Failed are terminal.
const (
	RunStatusPending       RunStatus = "pending"
	RunStatusQuerying      RunStatus = "querying"
	RunStatusNormalizing   RunStatus = "normalizing"
	RunStatusExtracting    RunStatus = "extracting"
	RunStatusDeduplicating RunStatus = "deduplicating"
	RunStatusPersisting    RunStatus = "persisting"
	RunStatusDone          RunStatus = "done"
	RunStatusPartial       RunStatus = "partial"
	RunStatusFailed        RunStatus = "failed"
)

// IsTerminal returns true for states a run never leaves.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusDone || s == RunStatusPartial || s == RunStatusFailed
}

// String returns the string representation.
func (s RunStatus) String() string {
	return string(s)
}

// Default run configuration values.
const (
	DefaultMaxResults            = 10
	DefaultSimilarityThreshold   = 0.92
	DefaultRunTimeout            = 120 * time.Second
	DefaultProviderTimeout       = 30 * time.Second
	DefaultExtractionConcurrency = 4
	DefaultRecentWindow          = 200
)

// RunConfig is the immutable configuration of one discovery run.
type RunConfig struct {
	// Providers selects providers by id. Empty means every registered provider.
	Providers []string

	// MaxResults bounds the hits requested from each provider.
	MaxResults int

	// SimilarityThreshold is τ: pairs scoring at or above it are near-duplicates.
	SimilarityThreshold float64

	// ExtractionEnabled runs the extractor on every candidate.
	ExtractionEnabled bool

	// TaggingEnabled runs the tagger on every candidate.
	TaggingEnabled bool

	// RunTimeout bounds provider and extraction work for the whole run.
	RunTimeout time.Duration

	// ExtractionConcurrency bounds in-flight extractor calls.
	ExtractionConcurrency int

	// RecentWindow is how many stored items near-duplicate detection compares against.
	RecentWindow int

	// ProviderOptions holds per-provider options keyed by provider id.
	ProviderOptions map[string]ProviderOptions
}

// DefaultRunConfig returns a run configuration with defaults applied.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxResults:            DefaultMaxResults,
		SimilarityThreshold:   DefaultSimilarityThreshold,
		RunTimeout:            DefaultRunTimeout,
		ExtractionConcurrency: DefaultExtractionConcurrency,
		RecentWindow:          DefaultRecentWindow,
	}
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c RunConfig) WithDefaults() RunConfig {
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.ExtractionConcurrency == 0 {
		c.ExtractionConcurrency = DefaultExtractionConcurrency
	}
	if c.RecentWindow == 0 {
		c.RecentWindow = DefaultRecentWindow
	}
	return c
}

// Validate checks the configuration after defaults have been applied.
func (c RunConfig) Validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("%w: max_results must be positive", ErrInvalidInput)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in (0, 1]", ErrInvalidInput)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run_timeout must not be negative", ErrInvalidInput)
	}
	if c.ExtractionConcurrency < 1 {
		return fmt.Errorf("%w: extraction_concurrency must be positive", ErrInvalidInput)
	}
	if c.RecentWindow < 0 {
		return fmt.Errorf("%w: recent_window must not be negative", ErrInvalidInput)
	}
	for id, opts := range c.ProviderOptions {
		if opts.Depth != "" && !opts.Depth.IsValid() {
			return fmt.Errorf("%w: provider %s: unknown depth %q", ErrInvalidInput, id, opts.Depth)
		}
	}
	return nil
}

// OptionsFor returns the options for a provider, filling the default depth.
func (c RunConfig) OptionsFor(providerID string) ProviderOptions {
	opts := c.ProviderOptions[providerID]
	if opts.Depth == "" {
		opts.Depth = SearchDepthBasic
	}
	return opts
}

// Outcome is what happened to a candidate during deduplication.
type Outcome string

// Candidate outcomes.
const (
	OutcomeNew    Outcome = "new"
	OutcomeMerged Outcome = "merged"
)

// RunResult is the outcome of a discovery run.
type RunResult struct {
	RunID  string
	Query  string
	Status RunStatus

	// TotalCandidates counts every hit returned by surviving providers.
	TotalCandidates int

	// ItemsNew counts items created by this run.
	ItemsNew int

	// ItemsMerged counts candidates folded into an existing or sibling item.
	ItemsMerged int

	// ProviderErrors maps failed provider ids to the failure reason.
	ProviderErrors map[string]string

	// ValidationErrors counts hits dropped by the normaliser.
	ValidationErrors int

	// ExtractionErrors counts candidates that kept normaliser defaults.
	ExtractionErrors int

	// TaggingErrors counts candidates the tagger failed on.
	TaggingErrors int

	// StoreErrors maps item ids to the persistence failure reason.
	StoreErrors map[string]string

	// Items are the items written by this run, sorted by id.
	Items []*Item

	// Outcomes maps each candidate id to new or merged.
	Outcomes map[string]Outcome

	// TimedOut is set when the run deadline cut provider or extraction work short.
	TimedOut bool

	// Warnings are non-fatal problems that affected the whole run.
	Warnings []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunResult returns an empty result with its maps allocated.
func NewRunResult(runID, query string) *RunResult {
	return &RunResult{
		RunID:          runID,
		Query:          query,
		Status:         RunStatusPending,
		ProviderErrors: make(map[string]string),
		StoreErrors:    make(map[string]string),
		Outcomes:       make(map[string]Outcome),
	}
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunProgress is a live snapshot of a run, for progress display.
type RunProgress struct {
	RunID          string
	Query          string
	Status         RunStatus
	ProvidersDone  int
	ProvidersTotal int
	Candidates     int
	Extracted      int
	StartedAt      time.Time
}

// DedupResult is the output of deduplicating a candidate pool.
type DedupResult struct {
	// Items are the merged items to persist, sorted by id.
	Items []*Item

	// Outcomes maps each candidate id to new or merged.
	Outcomes map[string]Outcome

	// New and Merged count candidates by outcome.
	New    int
	Merged int

	// LookupErrors maps candidate ids to store lookup failures.
	// Those candidates are neither new nor merged.
	LookupErrors map[string]string

	// Warnings are problems that weakened deduplication without failing it.
	Warnings []string
}
