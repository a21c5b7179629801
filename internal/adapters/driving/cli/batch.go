package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/app"
	"github.com/custodia-labs/mosaic/internal/core/domain"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run discovery over a list of topics",
	Long: `Run one discovery per topic, pausing between topics. Each topic becomes a
query through the query template ("latest research and developments in AI: %s"
by default).

Topics come from --topics-file, the batch.topics_file setting, or the
built-in list. A topic file is YAML: either a list of topics or a mapping
with "topics" and an optional "query_template".

The command exits non-zero when any topic fails.

Examples:
  mosaic batch --test
  mosaic batch --topics-file topics.yaml --output summary.json`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("topics-file", "", "YAML topic list")
	batchCmd.Flags().Bool("test", false, "use the short built-in topic list")
	batchCmd.Flags().StringP("output", "o", "", "write the JSON summary to this file")
	batchCmd.Flags().Duration("delay", 0, "pause between topics")
	batchCmd.Flags().String("template", "", "query template; %s is the topic")
	batchCmd.Flags().Bool("json", false, "print the summary as JSON")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	flags := cmd.Flags()
	path, _ := flags.GetString("topics-file") //nolint:errcheck // flag registered in init
	if path == "" {
		path = a.Settings.Batch.TopicsFile
	}
	test, _ := flags.GetBool("test") //nolint:errcheck // flag registered in init
	if test {
		path = ""
	}

	topics, template, err := app.NewTopics(path, a.Settings.Batch.QueryTemplate, test).Topics()
	if err != nil {
		return err
	}

	opts := a.BatchOptions()
	opts.QueryTemplate = template
	if flags.Changed("template") {
		opts.QueryTemplate, _ = flags.GetString("template") //nolint:errcheck // flag registered in init
	}
	if flags.Changed("delay") {
		opts.Delay, _ = flags.GetDuration("delay") //nolint:errcheck // flag registered in init
	}

	summary, err := a.Batch.RunTopics(cmd.Context(), topics, opts)
	if summary == nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if output, _ := flags.GetString("output"); output != "" { //nolint:errcheck // flag registered in init
		if werr := writeSummary(output, summary); werr != nil {
			return werr
		}
		cmd.PrintErrf("Summary written to %s\n", output)
	}

	if asJSON, _ := flags.GetBool("json"); asJSON { //nolint:errcheck // flag registered in init
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if jerr := enc.Encode(summary); jerr != nil {
			return jerr
		}
	} else {
		printBatchSummary(cmd, summary)
	}

	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	return batchFailures(summary)
}

func writeSummary(path string, summary *domain.BatchSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// batchFailures joins the error of every failed topic.
func batchFailures(summary *domain.BatchSummary) error {
	var errs []error
	for _, r := range summary.Results {
		if !r.Success {
			errs = append(errs, fmt.Errorf("topic %q: %s", r.Topic, r.Error))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d topics failed: %w", summary.FailedTopics, summary.TotalTopics, errors.Join(errs...))
}

func printBatchSummary(cmd *cobra.Command, s *domain.BatchSummary) {
	lines := []string{
		styles.Title.Render("Batch summary"),
		row("Topics", s.TotalTopics),
		row("Succeeded", styles.Success.Render(fmt.Sprint(s.SuccessfulTopics))),
		row("Failed", failedCount(s.FailedTopics)),
		row("New items", s.TotalItemsNew),
		row("Merged", s.TotalItemsMerged),
		row("Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Second)),
	}
	cmd.Println(styles.Box.Render(strings.Join(lines, "\n")))

	for _, r := range s.Results {
		status := statusStyle(r.Status).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(r.Status))))
		if r.Status == "" {
			status = styles.Error.Render(fmt.Sprintf("%-8s", "ERROR"))
		}
		cmd.Printf("  %s %-40s new %d, merged %d\n", status, r.Topic, r.ItemsNew, r.ItemsMerged)
		if r.Error != "" {
			cmd.Println(styles.Muted.Render("           " + r.Error))
		}
	}
}

func failedCount(n int) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return styles.Error.Render(fmt.Sprint(n))
}
