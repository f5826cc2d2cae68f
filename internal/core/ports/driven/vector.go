package driven

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// IndexEntry is one row of a vector index: the vector and the metadata
// stored positionally alongside it in the sidecar.
type IndexEntry struct {
	EntityID string
	Detail   string
	Vector   []float32
}

// IndexHit is a similarity search result joined to its metadata.
type IndexHit struct {
	EntityID string

	// Similarity is the inner product of normalized vectors.
	Similarity float64

	Detail string
}

// VectorIndex is a flat inner-product index over L2-normalized vectors,
// persisted as an index file plus a positionally aligned metadata sidecar.
type VectorIndex interface {
	// Name identifies the index on disk.
	Name() string

	// Build normalizes entries, writes both files to temp paths and swaps them
	// in atomically. tag records the manifest version or embedding model.
	Build(ctx context.Context, entries []IndexEntry, tag string) error

	// Load reads the file pair from disk. A missing pair returns
	// domain.ErrVectorIndexUnavailable; a mismatched pair returns domain.ErrIndexCorrupt.
	Load(ctx context.Context) error

	// Search returns up to k entries most similar to query.
	Search(ctx context.Context, query []float32, k int) ([]IndexHit, error)

	// Status describes the on-disk and in-memory state.
	Status() domain.IndexStatus

	// Close releases resources.
	Close() error
}

// VectorStore persists profile vectors, tagged with the manifest version
// they were built with. Each write goes to a path unique to (entity, run) so
// a file referenced by a committed profile row is never overwritten.
type VectorStore interface {
	// Write stores the vector under a path derived from entityID and runID
	// and returns that path.
	Write(ctx context.Context, entityID, runID, manifestVersion string, vector domain.Vector) (string, error)

	// Read loads a vector. Returns domain.ErrManifestMismatch when the stored
	// version differs from manifestVersion and domain.ErrNotFound when absent.
	Read(ctx context.Context, path, manifestVersion string) (domain.Vector, error)

	// List returns every vector file path on disk.
	List(ctx context.Context) ([]string, error)

	// Remove deletes a vector file.
	Remove(ctx context.Context, path string) error
}
