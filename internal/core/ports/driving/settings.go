package driving

import "github.com/custodia-labs/cogniprof/internal/core/domain"

// SettingEntry is one configuration key with its effective value.
type SettingEntry struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Default     string `json:"default"`
	Configured  bool   `json:"configured"`
	Description string `json:"description"`
}

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves the effective settings: configured values over defaults.
	Get() (*domain.AppSettings, error)

	// Value returns the effective value of one key as text.
	Value(key string) (string, error)

	// Set parses raw for the key's type, validates it and persists it.
	// Unknown keys return domain.ErrInvalidInput.
	Set(key, raw string) error

	// List returns every recognised key in sorted order.
	List() []SettingEntry

	// GetDefaults returns the default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbedding checks that the configured embedding provider is reachable.
	ValidateEmbedding() error
}
