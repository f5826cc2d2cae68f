// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/cogniprof/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the configured embedding provider behind a rate limiter.
// Returns nil, nil when embeddings are disabled.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var inner driven.EmbeddingService
	switch settings.Provider {
	case domain.AIProviderOllama:
		inner = createOllamaEmbedding(settings)
	case domain.AIProviderOpenAI:
		svc, err := createOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
		inner = svc
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}

	return ratelimit.Wrap(inner, ratelimit.Config{RequestsPerSecond: settings.RequestsPerSecond}), nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig checks that an embedding configuration reaches its provider.
// A disabled configuration is valid.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(context.Background(), settings)
	if err != nil {
		return err
	}
	if svc != nil {
		_ = svc.Close()
	}
	return nil
}

func createOllamaEmbedding(settings *domain.EmbeddingSettings) *ollama.EmbeddingService {
	return ollama.NewEmbeddingService(ollama.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (*openai.EmbeddingService, error) {
	svc, err := openai.NewEmbeddingService(openai.Config{
		APIKey:     os.Getenv(settings.APIKeyEnv),
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding (set $%s): %w", settings.APIKeyEnv, err)
	}
	return svc, nil
}
