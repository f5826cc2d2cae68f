package driven

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// ProfileStore persists entity profiles.
type ProfileStore interface {
	// Replace deletes the entity's profile row and inserts the new one in a
	// single transaction. On failure the prior row is left intact.
	Replace(ctx context.Context, profile *domain.EntityProfile) error

	// Get retrieves a profile. Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, entityID string) (*domain.EntityProfile, error)

	// List returns all profiles ordered by entity id.
	List(ctx context.Context) ([]domain.EntityProfile, error)

	// ReferencedVectorPaths returns every non-empty vector path held by a profile row.
	ReferencedVectorPaths(ctx context.Context) ([]string, error)

	// SetVectorPath records where the entity's vector file lives.
	SetVectorPath(ctx context.Context, entityID, path, manifestVersion string) error

	// Search returns profiles whose entity id, labels or topics contain term.
	// This is the non-vector fallback lookup.
	Search(ctx context.Context, term string, limit int) ([]domain.EntityProfile, error)
}

// LineStore persists jurisprudential lines.
type LineStore interface {
	// ReplaceForEntity deletes every line of the entity, inserts lines and
	// writes summary onto the entity's profile, all in one transaction.
	ReplaceForEntity(ctx context.Context, entityID string, lines []domain.JurisprudentialLine, summary domain.LineSummary) error

	// ListByEntity returns an entity's lines ordered by topic.
	ListByEntity(ctx context.Context, entityID string) ([]domain.JurisprudentialLine, error)
}
