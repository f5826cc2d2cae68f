package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity, profile or line does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoData indicates an entity has no usable records.
	// Batch drivers treat it as a skip, not a failure.
	ErrNoData = errors.New("no usable data")

	// ErrPersistence indicates a write was rolled back.
	// The previously stored state is left intact.
	ErrPersistence = errors.New("persistence failure")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Text queries against the signature index are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not built or not loadable.
	// Callers fall back to non-vector lookups.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexCorrupt indicates the index file and its metadata sidecar disagree.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// ErrManifestMismatch indicates a stored vector was built with a different feature manifest.
	ErrManifestMismatch = errors.New("feature manifest mismatch")
)
