// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - RecordStore: Ingested analysis record persistence
//   - ProfileStore: Entity profile persistence with atomic replace
//   - LineStore: Jurisprudential line persistence with per-entity replace
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorStore: Per-entity vector files. Without it, orphan cleanup is a no-op.
//   - VectorIndex: Flat inner-product index. Without it, queries fall back to store lookups.
//   - EmbeddingService: Generates text embeddings. Without it, the signature index is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
