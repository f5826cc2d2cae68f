package services

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyDataDir           = "data.dir"
	KeyIndexDir          = "index.dir"
	KeyIndexTopK         = "index.top_k"
	KeyIndexQueryTimeout = "index.query_timeout_seconds"
	KeyEmbedProvider     = "embedding.provider"
	KeyEmbedModel        = "embedding.model"
	KeyEmbedBaseURL      = "embedding.base_url"
	KeyEmbedAPIKeyEnv    = "embedding.api_key_env"
	KeyEmbedDimensions   = "embedding.dimensions"
	KeyEmbedRate         = "embedding.requests_per_second"
	KeyBatchWorkers      = "batch.workers"
	KeyLinesMinGroupSize = "lines.min_group_size"
	KeyLinesMissingRatio = "lines.missing_ratio_policy"
	KeyProfileConfidence = "profile.confidence_model"
	KeyProfileTopTopics  = "profile.top_topics"
)

type settingKind int

const (
	kindString settingKind = iota
	kindPositiveInt
	kindNonNegativeInt
	kindPositiveFloat
)

// settingDef binds a config key to a field of domain.AppSettings.
type settingDef struct {
	key     string
	kind    settingKind
	desc    string
	allowed []string
	get     func(*domain.AppSettings) any
	set     func(*domain.AppSettings, any)
}

var settingDefs = []settingDef{
	{
		key: KeyDataDir, kind: kindString, desc: "Directory holding the database and vector files",
		get: func(s *domain.AppSettings) any { return s.DataDir },
		set: func(s *domain.AppSettings, v any) { s.DataDir = v.(string) },
	},
	{
		key: KeyIndexDir, kind: kindString, desc: "Directory holding vector index files",
		get: func(s *domain.AppSettings) any { return s.Index.Dir },
		set: func(s *domain.AppSettings, v any) { s.Index.Dir = v.(string) },
	},
	{
		key: KeyIndexTopK, kind: kindPositiveInt, desc: "Default number of index query results",
		get: func(s *domain.AppSettings) any { return s.Index.TopK },
		set: func(s *domain.AppSettings, v any) { s.Index.TopK = v.(int) },
	},
	{
		key: KeyIndexQueryTimeout, kind: kindPositiveInt, desc: "Timeout for free-text index queries",
		get: func(s *domain.AppSettings) any { return int(s.Index.QueryTimeout / time.Second) },
		set: func(s *domain.AppSettings, v any) { s.Index.QueryTimeout = time.Duration(v.(int)) * time.Second },
	},
	{
		key: KeyEmbedProvider, kind: kindString, desc: "Text encoder for the signature index",
		allowed: []string{string(domain.AIProviderNone), string(domain.AIProviderOllama), string(domain.AIProviderOpenAI)},
		get:     func(s *domain.AppSettings) any { return string(s.Embedding.Provider) },
		set:     func(s *domain.AppSettings, v any) { s.Embedding.Provider = domain.AIProvider(v.(string)) },
	},
	{
		key: KeyEmbedModel, kind: kindString, desc: "Embedding model name",
		get: func(s *domain.AppSettings) any { return s.Embedding.Model },
		set: func(s *domain.AppSettings, v any) { s.Embedding.Model = v.(string) },
	},
	{
		key: KeyEmbedBaseURL, kind: kindString, desc: "Embedding API base URL",
		get: func(s *domain.AppSettings) any { return s.Embedding.BaseURL },
		set: func(s *domain.AppSettings, v any) { s.Embedding.BaseURL = v.(string) },
	},
	{
		key: KeyEmbedAPIKeyEnv, kind: kindString, desc: "Environment variable holding the embedding API key",
		get: func(s *domain.AppSettings) any { return s.Embedding.APIKeyEnv },
		set: func(s *domain.AppSettings, v any) { s.Embedding.APIKeyEnv = v.(string) },
	},
	{
		key: KeyEmbedDimensions, kind: kindNonNegativeInt, desc: "Embedding dimensions (0 = model default)",
		get: func(s *domain.AppSettings) any { return s.Embedding.Dimensions },
		set: func(s *domain.AppSettings, v any) { s.Embedding.Dimensions = v.(int) },
	},
	{
		key: KeyEmbedRate, kind: kindPositiveFloat, desc: "Maximum embedding requests per second",
		get: func(s *domain.AppSettings) any { return s.Embedding.RequestsPerSecond },
		set: func(s *domain.AppSettings, v any) { s.Embedding.RequestsPerSecond = v.(float64) },
	},
	{
		key: KeyBatchWorkers, kind: kindPositiveInt, desc: "Concurrent entities in --all runs",
		get: func(s *domain.AppSettings) any { return s.Batch.Workers },
		set: func(s *domain.AppSettings, v any) { s.Batch.Workers = v.(int) },
	},
	{
		key: KeyLinesMinGroupSize, kind: kindPositiveInt, desc: "Minimum records on a topic to form a line",
		get: func(s *domain.AppSettings) any { return s.Lines.MinGroupSize },
		set: func(s *domain.AppSettings, v any) { s.Lines.MinGroupSize = v.(int) },
	},
	{
		key: KeyLinesMissingRatio, kind: kindString, desc: "Handling of unobserved agreement ratios",
		allowed: []string{string(domain.MissingRatioNeutral), string(domain.MissingRatioExclude)},
		get:     func(s *domain.AppSettings) any { return string(s.Lines.MissingRatio) },
		set:     func(s *domain.AppSettings, v any) { s.Lines.MissingRatio = domain.MissingRatioPolicy(v.(string)) },
	},
	{
		key: KeyProfileConfidence, kind: kindString, desc: "Profile confidence model",
		allowed: []string{domain.ConfidenceStep, domain.ConfidenceWilson},
		get:     func(s *domain.AppSettings) any { return s.Profile.ConfidenceModel },
		set:     func(s *domain.AppSettings, v any) { s.Profile.ConfidenceModel = v.(string) },
	},
	{
		key: KeyProfileTopTopics, kind: kindPositiveInt, desc: "Recurring topics kept per profile",
		get: func(s *domain.AppSettings) any { return s.Profile.TopTopics },
		set: func(s *domain.AppSettings, v any) { s.Profile.TopTopics = v.(int) },
	},
}

func findSetting(key string) (*settingDef, bool) {
	for i := range settingDefs {
		if settingDefs[i].key == key {
			return &settingDefs[i], true
		}
	}
	return nil, false
}

// SettingsService resolves configuration keys over defaults.
type SettingsService struct {
	configStore    driven.ConfigStore
	aiValidator    driven.AIConfigValidator
	defaultDataDir string
}

// NewSettingsService creates a new settings service.
// The aiValidator parameter is optional (can be nil).
// defaultDataDir applies when data.dir is not configured.
func NewSettingsService(
	configStore driven.ConfigStore, aiValidator driven.AIConfigValidator, defaultDataDir string,
) *SettingsService {
	return &SettingsService{
		configStore:    configStore,
		aiValidator:    aiValidator,
		defaultDataDir: defaultDataDir,
	}
}

// ValidateEmbedding checks that the configured embedding provider is reachable.
// Returns nil when no validator is set or embeddings are disabled.
func (s *SettingsService) ValidateEmbedding() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// GetDefaults returns the default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	dataDir := s.defaultDataDir
	if v, ok := s.configured(KeyDataDir); ok {
		dataDir = v.(string)
	}
	return domain.DefaultAppSettings(dataDir)
}

// Get resolves the effective settings. Values of the wrong type are ignored.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.GetDefaults()
	for i := range settingDefs {
		def := &settingDefs[i]
		if v, ok := s.configured(def.key); ok {
			def.set(&settings, v)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", s.configStore.Path(), err)
	}
	return &settings, nil
}

// Value returns the effective value of one key as text.
func (s *SettingsService) Value(key string) (string, error) {
	def, ok := findSetting(key)
	if !ok {
		return "", fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}
	return formatSetting(def.get(settings)), nil
}

// Set parses raw for the key's type, validates it and persists it.
func (s *SettingsService) Set(key, raw string) error {
	def, ok := findSetting(key)
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}
	value, err := parseSetting(def, strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// List returns every recognised key in sorted order.
func (s *SettingsService) List() []driving.SettingEntry {
	defaults := s.GetDefaults()
	effective := defaults
	for i := range settingDefs {
		if v, ok := s.configured(settingDefs[i].key); ok {
			settingDefs[i].set(&effective, v)
		}
	}

	entries := make([]driving.SettingEntry, 0, len(settingDefs))
	for i := range settingDefs {
		def := &settingDefs[i]
		_, configured := s.configured(def.key)
		entries = append(entries, driving.SettingEntry{
			Key:         def.key,
			Value:       formatSetting(def.get(&effective)),
			Default:     formatSetting(def.get(&defaults)),
			Configured:  configured,
			Description: def.desc,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// configured returns the stored value converted to the key's Go type.
func (s *SettingsService) configured(key string) (any, bool) {
	def, ok := findSetting(key)
	if !ok || s.configStore == nil {
		return nil, false
	}
	raw, ok := s.configStore.Get(key)
	if !ok {
		return nil, false
	}
	switch def.kind {
	case kindString:
		str, ok := raw.(string)
		if !ok || str == "" {
			return nil, false
		}
		return str, true
	case kindPositiveInt, kindNonNegativeInt:
		n, ok := toInt(raw)
		if !ok || n < 0 || (def.kind == kindPositiveInt && n == 0) {
			return nil, false
		}
		return n, true
	case kindPositiveFloat:
		f, ok := toFloat(raw)
		if !ok || f <= 0 {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func parseSetting(def *settingDef, raw string) (any, error) {
	invalid := func(reason string) error {
		return fmt.Errorf("%s: %s: %w", def.key, reason, domain.ErrInvalidInput)
	}
	switch def.kind {
	case kindPositiveInt, kindNonNegativeInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, invalid("expected an integer")
		}
		if n < 0 || (def.kind == kindPositiveInt && n == 0) {
			return nil, invalid("must be positive")
		}
		return n, nil
	case kindPositiveFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("expected a number")
		}
		if f <= 0 {
			return nil, invalid("must be positive")
		}
		return f, nil
	default:
		if raw == "" {
			return nil, invalid("must not be empty")
		}
		if len(def.allowed) > 0 && !slices.Contains(def.allowed, raw) {
			return nil, invalid("must be one of " + strings.Join(def.allowed, ", "))
		}
		return raw, nil
	}
}

func formatSetting(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}
