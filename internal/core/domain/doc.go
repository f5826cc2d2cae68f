// Package domain defines the core business entities for cogniprof.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - AnalysisRecord: Per-document score layers produced by an external extractor
//   - FeatureManifest: The canonical ordered list of vector dimensions
//   - EntityProfile: Aggregated scores for one judge or author
//   - JurisprudentialLine: Consistency analysis of one entity on one topic
//   - SimilarityResult: Derived comparison between two profiles
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
