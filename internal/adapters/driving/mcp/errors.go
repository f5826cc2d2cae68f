// Package mcp provides an MCP (Model Context Protocol) server adapter for cogniprof.
// It lets LLM collaborators read profiles and lines and run similarity queries.
package mcp

import "errors"

// ErrMissingProfileReader is returned when the profile reader is not provided.
var ErrMissingProfileReader = errors.New("mcp: profile reader is required")

// ErrMissingSimilarityService is returned when the similarity service is not provided.
var ErrMissingSimilarityService = errors.New("mcp: similarity service is required")
