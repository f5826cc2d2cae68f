package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// IngestService loads extractor output into the record store.
type IngestService interface {
	// IngestFile reads a JSON object, JSON array or JSON-lines file.
	// Malformed entries are skipped and counted, never fatal.
	IngestFile(ctx context.Context, path string) (*domain.IngestReport, error)

	// Ingest reads records from r; name labels the source in logs and reports.
	Ingest(ctx context.Context, r io.Reader, name string) (*domain.IngestReport, error)
}
