package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cogniprof/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "empty provider", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{name: "none", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderNone}, wantNil: true},
		{
			name:     "ollama",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"},
		},
		{
			name:     "unknown provider",
			settings: &domain.EmbeddingSettings{Provider: "cohere"},
			wantNil:  true,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.IsType(t, &ratelimit.EmbeddingService{}, svc)
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateEmbeddingService_OpenAI(t *testing.T) {
	settings := &domain.EmbeddingSettings{
		Provider:  domain.AIProviderOpenAI,
		Model:     "text-embedding-3-small",
		APIKeyEnv: "COGNIPROF_TEST_OPENAI_KEY",
	}

	t.Setenv("COGNIPROF_TEST_OPENAI_KEY", "")
	_, err := CreateEmbeddingService(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$COGNIPROF_TEST_OPENAI_KEY")

	t.Setenv("COGNIPROF_TEST_OPENAI_KEY", "test-key")
	svc, err := CreateEmbeddingService(settings)
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.NoError(t, svc.Close())
}

func TestValidateEmbeddingConfig(t *testing.T) {
	t.Run("disabled is valid", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderNone}))
	})

	t.Run("reachable ollama", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  server.URL,
		})
		assert.NoError(t, err)
	})

	t.Run("unreachable ollama", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  server.URL,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("unknown provider", func(t *testing.T) {
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: "cohere"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}
