package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding provider.
type AIProvider string

// Available providers.
const (
	// AIProviderNone disables text embeddings; the signature index is off.
	AIProviderNone AIProvider = "none"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderNone, AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if the provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if the provider runs on the local machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderNone:
		return "None (profile index only)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// Confidence model names accepted by profile.confidence_model.
const (
	ConfidenceStep   = "step"
	ConfidenceWilson = "wilson"
)

// IndexSettings configures the vector indexes.
type IndexSettings struct {
	Dir          string
	TopK         int
	QueryTimeout time.Duration
}

// EmbeddingSettings configures the optional text encoder.
type EmbeddingSettings struct {
	Provider          AIProvider
	Model             string
	BaseURL           string
	APIKeyEnv         string
	Dimensions        int
	RequestsPerSecond float64
}

// IsConfigured reports whether an embedding provider is selected.
func (e *EmbeddingSettings) IsConfigured() bool {
	return e.Provider != "" && e.Provider != AIProviderNone
}

// BatchSettings configures --all runs.
type BatchSettings struct {
	Workers int
}

// LineSettings configures jurisprudential line analysis.
type LineSettings struct {
	MinGroupSize int
	MissingRatio MissingRatioPolicy
}

// ProfileSettings configures profile aggregation.
type ProfileSettings struct {
	ConfidenceModel string
	TopTopics       int
}

// AppSettings is the resolved application configuration.
type AppSettings struct {
	DataDir   string
	Index     IndexSettings
	Embedding EmbeddingSettings
	Batch     BatchSettings
	Lines     LineSettings
	Profile   ProfileSettings
}

// DefaultAppSettings returns the defaults rooted at dataDir.
func DefaultAppSettings(dataDir string) AppSettings {
	return AppSettings{
		DataDir: dataDir,
		Index: IndexSettings{
			Dir:          filepath.Join(dataDir, "index"),
			TopK:         8,
			QueryTimeout: 15 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Provider:          AIProviderNone,
			APIKeyEnv:         "OPENAI_API_KEY",
			RequestsPerSecond: 4,
		},
		Batch: BatchSettings{
			Workers: 4,
		},
		Lines: LineSettings{
			MinGroupSize: DefaultMinGroupSize,
			MissingRatio: MissingRatioNeutral,
		},
		Profile: ProfileSettings{
			ConfidenceModel: ConfidenceStep,
			TopTopics:       10,
		},
	}
}

// VectorDir is where per-entity profile vectors live.
func (s AppSettings) VectorDir() string {
	return filepath.Join(s.DataDir, "vectors")
}

// Validate checks cross-field constraints.
func (s AppSettings) Validate() error {
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("unknown embedding provider %q: %w", s.Embedding.Provider, ErrInvalidInput)
	}
	if m := s.Profile.ConfidenceModel; m != ConfidenceStep && m != ConfidenceWilson {
		return fmt.Errorf("unknown confidence model %q: %w", s.Profile.ConfidenceModel, ErrInvalidInput)
	}
	if s.Index.TopK <= 0 || s.Batch.Workers <= 0 || s.Profile.TopTopics <= 0 {
		return fmt.Errorf("index.top_k, batch.workers and profile.top_topics must be positive: %w", ErrInvalidInput)
	}
	if s.Lines.MinGroupSize <= 0 {
		return fmt.Errorf("lines.min_group_size must be positive: %w", ErrInvalidInput)
	}
	if s.Index.QueryTimeout <= 0 {
		return fmt.Errorf("index.query_timeout_seconds must be positive: %w", ErrInvalidInput)
	}
	return nil
}
