package mcp

import (
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Reader exposes stored profiles and lines.
	Reader driving.ProfileReader

	// Similarity compares profiles.
	Similarity driving.SimilarityService

	// Index answers vector queries. Optional; queries fall back to exact lookups.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Reader == nil {
		return ErrMissingProfileReader
	}
	if p.Similarity == nil {
		return ErrMissingSimilarityService
	}
	return nil
}
