// Package flatindex provides a pure Go exhaustive inner-product index.
// It implements the driven.VectorIndex interface.
//
// An index named "profiles" lives in two files inside the index directory:
//
//	profiles.fidx       binary header and L2-normalized float32 vectors
//	profiles.meta.json  build id, tag and per-position entity metadata
//
// Both files carry the same build id. Build writes each file to a temp path
// and renames them into place; Load refuses a pair whose build ids differ.
package flatindex
