package driven

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// RecordStore persists ingested analysis records.
// Records are keyed by (entity_id, document_id); saving an existing key replaces it.
type RecordStore interface {
	// Save upserts a single record.
	Save(ctx context.Context, record *domain.AnalysisRecord) error

	// SaveBatch upserts records in one transaction.
	SaveBatch(ctx context.Context, records []domain.AnalysisRecord) error

	// ListByEntity returns every record of an entity ordered by document id.
	ListByEntity(ctx context.Context, entityID string) ([]domain.AnalysisRecord, error)

	// ListEntities returns entity ids with at least minRecords records, sorted.
	ListEntities(ctx context.Context, minRecords int) ([]string, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)
}
