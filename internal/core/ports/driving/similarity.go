package driving

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// SimilarityService compares stored profiles in manifest vector space.
type SimilarityService interface {
	// Compare returns cosine similarity, euclidean distance and the n top differentiators.
	Compare(ctx context.Context, entityA, entityB string, n int) (*domain.SimilarityResult, error)

	// Rank orders every other profile by similarity to entityID. limit <= 0 means all.
	Rank(ctx context.Context, entityID string, limit int) ([]domain.RankedEntity, error)

	// PatternSearch scores profiles on the named dimensions only.
	// Pattern keys may be full feature keys or leaf names.
	PatternSearch(ctx context.Context, pattern map[string]float64, threshold float64) ([]domain.PatternMatch, error)

	// Matrix computes pairwise similarities over every profile.
	Matrix(ctx context.Context) (*domain.SimilarityMatrix, error)
}

// IndexService maintains the on-disk vector indexes and answers queries.
type IndexService interface {
	// Status reports every index, including disabled ones.
	Status(ctx context.Context) []domain.IndexStatus

	// EnsureBuilt builds any enabled index that is missing on disk.
	EnsureBuilt(ctx context.Context) error

	// Rebuild rebuilds every enabled index from the profile store.
	Rebuild(ctx context.Context) error

	// QueryText embeds text and searches the signature index.
	// Returns domain.ErrEmbeddingUnavailable or domain.ErrVectorIndexUnavailable when disabled.
	QueryText(ctx context.Context, text string, k int) ([]domain.RankedEntity, error)

	// QueryEntity searches the profile index with an entity's own vector.
	QueryEntity(ctx context.Context, entityID string, k int) ([]domain.RankedEntity, error)

	// CleanupOrphans deletes vector files no profile row references.
	CleanupOrphans(ctx context.Context) (*domain.CleanupReport, error)
}
