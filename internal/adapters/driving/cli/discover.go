package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [query]",
	Short: "Run one discovery query across the enabled providers",
	Long: `Run a discovery query against every enabled search provider, extract
structured metadata from the results, merge duplicates and store the items.

A provider that fails does not stop the others; the run then ends PARTIAL.

Examples:
  mosaic discover "open source code assistants"
  mosaic discover "vision transformers" --provider arxiv --provider github
  mosaic discover "rag frameworks" --extract --tag --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringSliceP("provider", "p", nil, "providers to query (default: all enabled)")
	discoverCmd.Flags().IntP("max-results", "n", 0, "maximum results per provider")
	discoverCmd.Flags().Float64("threshold", 0, "similarity threshold for merging")
	discoverCmd.Flags().Bool("extract", false, "extract metadata with the LLM")
	discoverCmd.Flags().Bool("tag", false, "tag items with the LLM")
	discoverCmd.Flags().Duration("timeout", 0, "overall run timeout")
	discoverCmd.Flags().Bool("json", false, "print the run result as JSON")
	rootCmd.AddCommand(discoverCmd)
}

// runReport is the JSON form of a run result.
type runReport struct {
	RunID            string            `json:"run_id"`
	Query            string            `json:"query"`
	Status           domain.RunStatus  `json:"status"`
	TotalCandidates  int               `json:"total_candidates"`
	ItemsNew         int               `json:"items_new"`
	ItemsMerged      int               `json:"items_merged"`
	ProviderErrors   map[string]string `json:"provider_errors"`
	ValidationErrors int               `json:"validation_errors"`
	ExtractionErrors int               `json:"extraction_errors"`
	TaggingErrors    int               `json:"tagging_errors"`
	StoreErrors      map[string]string `json:"store_errors,omitempty"`
	TimedOut         bool              `json:"timed_out,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	DurationMS       int64             `json:"duration_ms"`
	Items            []*domain.Item    `json:"items"`
}

func newRunReport(r *domain.RunResult) runReport {
	items := r.Items
	if items == nil {
		items = []*domain.Item{}
	}
	return runReport{
		RunID:            r.RunID,
		Query:            r.Query,
		Status:           r.Status,
		TotalCandidates:  r.TotalCandidates,
		ItemsNew:         r.ItemsNew,
		ItemsMerged:      r.ItemsMerged,
		ProviderErrors:   r.ProviderErrors,
		ValidationErrors: r.ValidationErrors,
		ExtractionErrors: r.ExtractionErrors,
		TaggingErrors:    r.TaggingErrors,
		StoreErrors:      r.StoreErrors,
		TimedOut:         r.TimedOut,
		Warnings:         r.Warnings,
		DurationMS:       r.Duration().Milliseconds(),
		Items:            items,
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := runConfigFromFlags(cmd, a.Settings.RunConfig())
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json") //nolint:errcheck // flag registered in init

	query := strings.Join(args, " ")
	result, err := discoverWithProgress(cmd.Context(), cmd, a.Discovery, query, cfg, !asJSON)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(newRunReport(result)); err != nil {
			return err
		}
	} else {
		printRunSummary(cmd, result)
	}

	if result.Status == domain.RunStatusFailed {
		return fmt.Errorf("%w: every provider failed", domain.ErrAllProvidersFailed)
	}
	return nil
}

// runConfigFromFlags applies the flags the user set on top of cfg.
func runConfigFromFlags(cmd *cobra.Command, cfg domain.RunConfig) (domain.RunConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		providers, err := flags.GetStringSlice("provider")
		if err != nil {
			return cfg, err
		}
		cfg.Providers = providers
	}
	if flags.Changed("max-results") {
		n, err := flags.GetInt("max-results")
		if err != nil {
			return cfg, err
		}
		cfg.MaxResults = n
	}
	if flags.Changed("threshold") {
		v, err := flags.GetFloat64("threshold")
		if err != nil {
			return cfg, err
		}
		cfg.SimilarityThreshold = v
	}
	if flags.Changed("extract") {
		v, err := flags.GetBool("extract")
		if err != nil {
			return cfg, err
		}
		cfg.ExtractionEnabled = v
	}
	if flags.Changed("tag") {
		v, err := flags.GetBool("tag")
		if err != nil {
			return cfg, err
		}
		cfg.TaggingEnabled = v
	}
	if flags.Changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return cfg, err
		}
		cfg.RunTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// discoverWithProgress runs discovery while reporting stage changes.
func discoverWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	discovery driving.DiscoveryService,
	query string,
	cfg domain.RunConfig,
	showProgress bool,
) (*domain.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	type runOutcome struct {
		result *domain.RunResult
		err    error
	}
	done := make(chan runOutcome, 1)
	go func() {
		result, err := discovery.Run(ctx, query, cfg)
		done <- runOutcome{result: result, err: err}
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last string
	for {
		select {
		case out := <-done:
			return out.result, out.err
		case <-ticker.C:
			if !showProgress {
				continue
			}
			for _, p := range discovery.Active() {
				if p.Query != query {
					continue
				}
				line := progressLine(p)
				if line != last {
					cmd.PrintErrln(styles.Muted.Render(line))
					last = line
				}
			}
		}
	}
}

func progressLine(p domain.RunProgress) string {
	switch p.Status {
	case domain.RunStatusQuerying:
		return fmt.Sprintf("querying providers (%d/%d done)", p.ProvidersDone, p.ProvidersTotal)
	case domain.RunStatusExtracting:
		return fmt.Sprintf("extracting (%d/%d)", p.Extracted, p.Candidates)
	default:
		return fmt.Sprintf("%s (%d candidates)", p.Status, p.Candidates)
	}
}

func printRunSummary(cmd *cobra.Command, r *domain.RunResult) {
	lines := []string{
		styles.Title.Render("Run " + r.RunID),
		row("Query", r.Query),
		row("Status", statusStyle(r.Status).Render(strings.ToUpper(string(r.Status)))),
		row("Candidates", r.TotalCandidates),
		row("New items", r.ItemsNew),
		row("Merged", r.ItemsMerged),
		row("Duration", r.Duration().Round(time.Millisecond)),
	}
	if r.ValidationErrors > 0 {
		lines = append(lines, row("Invalid hits", r.ValidationErrors))
	}
	if r.ExtractionErrors > 0 || r.TaggingErrors > 0 {
		lines = append(lines, row("Degraded", fmt.Sprintf("%d extraction, %d tagging", r.ExtractionErrors, r.TaggingErrors)))
	}
	if r.TimedOut {
		lines = append(lines, row("Timed out", styles.Warning.Render("yes")))
	}
	cmd.Println(styles.Box.Render(strings.Join(lines, "\n")))

	for _, id := range sortedKeys(r.ProviderErrors) {
		cmd.Println(styles.Error.Render(fmt.Sprintf("provider %s: %s", id, r.ProviderErrors[id])))
	}
	for _, id := range sortedKeys(r.StoreErrors) {
		cmd.Println(styles.Error.Render(fmt.Sprintf("store %s: %s", id, r.StoreErrors[id])))
	}
	for _, w := range r.Warnings {
		cmd.Println(styles.Warning.Render("warning: " + w))
	}

	for _, item := range r.Items {
		outcome := string(r.Outcomes[item.ID])
		if outcome == "" {
			outcome = "-"
		}
		cmd.Printf("  %-6s %s %s\n", outcome, item.Metadata.Title, styles.Muted.Render(item.Source.URL))
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
