// Package cli provides the mosaic command line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/ai"
	"github.com/custodia-labs/mosaic/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mosaic/internal/app"
	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
	"github.com/custodia-labs/mosaic/internal/core/services"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

var (
	configDir string
	verbose   bool
)

// settingsService is built from --config-dir unless set beforehand.
var settingsService driving.SettingsService

// openApp builds the pipeline for one command. Tests replace it.
var openApp = func(settings domain.Settings) (*app.App, error) {
	return app.New(settings, app.Options{ConfigDir: configDir})
}

var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Discover AI tools, models and papers across search providers",
	Long: `Mosaic fans a query out to several search providers, turns every result
into a structured item, merges duplicates and keeps one record per item.

Configuration lives in ~/.mosaic/config.toml; run 'mosaic settings' to see it.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.mosaic)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// SetSettingsService sets the settings service used by every command.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func initServices(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if settingsService != nil {
		return nil
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService = services.NewSettingsService(store, ai.NewConfigValidator())
	return nil
}

// loadApp builds the pipeline from the current settings and reports
// anything it had to leave out.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	a, err := openApp(*settings)
	if err != nil {
		return nil, err
	}
	for _, w := range a.Warnings {
		cmd.PrintErrln(styles.Warning.Render("warning: " + w))
	}
	return a, nil
}
