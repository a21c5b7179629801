package driving

import "github.com/custodia-labs/mosaic/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get assembles the current settings snapshot from config and environment.
	Get() (*domain.Settings, error)

	// Set updates one configuration key and persists it.
	Set(key, value string) error

	// Keys returns every recognised configuration key.
	Keys() []string

	// Entries returns every key with its effective value and source.
	Entries() ([]domain.SettingEntry, error)

	// Check reports configuration problems without contacting any backend.
	Check() []domain.SettingsIssue

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error

	// GetSchedulerConfig returns the scheduler configuration.
	GetSchedulerConfig() domain.SchedulerConfig
}
