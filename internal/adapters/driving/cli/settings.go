package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in ~/.mosaic/config.toml.

Environment variables such as TAVILY_API_KEY or OPENAI_API_KEY override the
file; 'settings show' reports where each value came from.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a setting",
	Long: `Set one setting and save it. Secret keys (API keys, passwords) are read
from the terminal without echo when the value is left out.

Examples:
  mosaic settings set providers.tavily.enabled true
  mosaic settings set providers.tavily.api_key
  mosaic settings set discovery.similarity_threshold 0.9`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every setting key",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration",
	Long: `Check the configuration without running discovery. Problems that would
stop a run are errors; the rest are warnings.

With --ping the configured LLM and embedding backends are contacted too.`,
	Args: cobra.NoArgs,
	RunE: runSettingsCheck,
}

func init() {
	settingsCheckCmd.Flags().Bool("ping", false, "contact the configured AI backends")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	entries, err := settingsService.Entries()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(styles.Title.Render("Settings"))
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Key))
	}
	for _, e := range entries {
		value := e.Value
		if e.Secret && value != "" {
			value = maskAPIKey(value)
		}
		if value == "" {
			value = styles.Muted.Render("(not set)")
		}
		source := ""
		if e.Source != domain.SettingSourceDefault {
			source = styles.Muted.Render(" [" + string(e.Source) + "]")
		}
		cmd.Printf("  %-*s  %s%s\n", width, e.Key, value, source)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		if !isSecretKey(key) {
			return fmt.Errorf("a value is required for %s", key)
		}
		cmd.Printf("Enter value for %s: ", key)
		value = readPassword()
		cmd.Println()
		if value == "" {
			return errors.New("no value entered")
		}
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	shown := value
	if isSecretKey(key) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("%s set to %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	issues := settingsService.Check()
	fatal := 0
	for _, issue := range issues {
		label := styles.Warning.Render("warning")
		if issue.Fatal {
			label = styles.Error.Render("error  ")
			fatal++
		}
		if issue.Key != "" {
			cmd.Printf("%s %s: %s\n", label, issue.Key, issue.Message)
		} else {
			cmd.Printf("%s %s\n", label, issue.Message)
		}
	}

	if ping, _ := cmd.Flags().GetBool("ping"); ping { //nolint:errcheck // flag registered in init
		fatal += pingBackends(cmd)
	}

	if fatal > 0 {
		return fmt.Errorf("configuration has %d error(s)", fatal)
	}
	cmd.Println(styles.Success.Render("Configuration OK"))
	return nil
}

// pingBackends contacts the configured AI backends and returns the number
// that failed.
func pingBackends(cmd *cobra.Command) int {
	settings, err := settingsService.Get()
	if err != nil {
		cmd.Printf("%s %v\n", styles.Error.Render("error  "), err)
		return 1
	}

	failed := 0
	check := func(name string, configured bool, validate func() error) {
		if !configured {
			return
		}
		cmd.Printf("Validating %s... ", name)
		if err := validate(); err != nil {
			cmd.Println(styles.Error.Render("FAILED: " + err.Error()))
			failed++
			return
		}
		cmd.Println(styles.Success.Render("OK"))
	}
	check("LLM", settings.LLM.IsConfigured(), settingsService.ValidateLLMConfig)
	check("embedding", settings.Embedding.IsConfigured(), settingsService.ValidateEmbeddingConfig)
	return failed
}

func isSecretKey(key string) bool {
	entries, err := settingsService.Entries()
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Key == key {
			return e.Secret
		}
	}
	return false
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
