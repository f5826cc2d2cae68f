// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - RecordStore: Ingested analysis records
//   - ProfileStore: Entity profiles, replaced atomically per entity
//   - LineStore: Jurisprudential lines, replaced per entity together with the profile summary
//
// Profiles and lines are stored as flat relational rows; nested fields
// (score maps, recurring tests, exceptions, predictive factors) are JSON strings
// so report generators can read them without this package.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.cogniprof/data/profiles.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
