package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

const (
	defaultLimit = 10
	defaultTop   = 5
)

// EntityInput is the input schema for tools addressing one entity.
type EntityInput struct {
	EntityID string `json:"entity_id" jsonschema:"the entity identifier"`
}

// CompareInput is the input schema for the compare tool.
type CompareInput struct {
	EntityA string `json:"entity_a" jsonschema:"first entity identifier"`
	EntityB string `json:"entity_b" jsonschema:"second entity identifier"`
	Top     int    `json:"top,omitempty" jsonschema:"number of differentiating dimensions to return (default 5)"`
}

// RankInput is the input schema for the rank tool.
type RankInput struct {
	EntityID string `json:"entity_id" jsonschema:"the reference entity"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// RankOutput is the output schema for the rank and query tools.
type RankOutput struct {
	Results []domain.RankedEntity `json:"results"`
	Count   int                   `json:"count"`
	// Fallback is set when the vector index was unavailable and an exact lookup answered.
	Fallback bool `json:"fallback,omitempty"`
}

// PatternInput is the input schema for the pattern_search tool.
type PatternInput struct {
	Pattern   map[string]float64 `json:"pattern" jsonschema:"feature key or leaf name to target value"`
	Threshold float64            `json:"threshold,omitempty" jsonschema:"minimum similarity (default 0.7)"`
}

// PatternOutput is the output schema for the pattern_search tool.
type PatternOutput struct {
	Matches []domain.PatternMatch `json:"matches"`
	Count   int                   `json:"count"`
}

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Text     string `json:"text,omitempty" jsonschema:"free-text description of a decision style"`
	EntityID string `json:"entity_id,omitempty" jsonschema:"find neighbours of this entity instead of text"`
	K        int    `json:"k,omitempty" jsonschema:"number of neighbours (default 10)"`
}

// SearchInput is the input schema for the search_profiles tool.
type SearchInput struct {
	Term  string `json:"term" jsonschema:"substring of an entity id or recurring topic"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// ProfileSummary is one search_profiles hit.
type ProfileSummary struct {
	EntityID    string  `json:"entity_id"`
	RecordCount int     `json:"record_count"`
	Confidence  float64 `json:"confidence"`
}

// SearchOutput is the output schema for the search_profiles tool.
type SearchOutput struct {
	Results []ProfileSummary `json:"results"`
	Count   int              `json:"count"`
}

const defaultThreshold = 0.7

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_profile",
		Description: "Get the consolidated cognitive and judicial profile of an entity",
	}, s.handleGetProfile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_lines",
		Description: "Get the jurisprudential lines (per-topic consistency analysis) of an entity",
	}, s.handleGetLines)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compare",
		Description: "Compare two entity profiles: similarity, affinity and top differentiators",
	}, s.handleCompare)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rank",
		Description: "Rank all other entities by profile similarity to one entity",
	}, s.handleRank)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "pattern_search",
		Description: "Find entities whose profiles match target values on selected dimensions",
	}, s.handlePatternSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Nearest-neighbour query by free text or by entity over the vector indexes",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_profiles",
		Description: "Find profiles whose entity id or recurring topics contain a term",
	}, s.handleSearchProfiles)
}

// handleGetProfile returns the profile as a flat JSON row.
func (s *Server) handleGetProfile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EntityInput,
) (*mcp.CallToolResult, any, error) {
	if input.EntityID == "" {
		return nil, nil, fmt.Errorf("entity_id is required: %w", domain.ErrInvalidInput)
	}
	p, err := s.ports.Reader.GetProfile(ctx, input.EntityID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(p.Row())
}

// handleGetLines returns the entity's lines as flat JSON rows.
func (s *Server) handleGetLines(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EntityInput,
) (*mcp.CallToolResult, any, error) {
	if input.EntityID == "" {
		return nil, nil, fmt.Errorf("entity_id is required: %w", domain.ErrInvalidInput)
	}
	lines, err := s.ports.Reader.GetLines(ctx, input.EntityID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(lineRows(lines))
}

// handleCompare compares two profiles.
func (s *Server) handleCompare(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, domain.SimilarityResult, error) {
	top := input.Top
	if top <= 0 {
		top = defaultTop
	}
	result, err := s.ports.Similarity.Compare(ctx, input.EntityA, input.EntityB, top)
	if err != nil {
		return nil, domain.SimilarityResult{}, err
	}
	return nil, *result, nil
}

// handleRank ranks profiles against one entity.
func (s *Server) handleRank(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RankInput,
) (*mcp.CallToolResult, RankOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	ranked, err := s.ports.Similarity.Rank(ctx, input.EntityID, limit)
	if err != nil {
		return nil, RankOutput{}, err
	}
	return nil, rankOutput(ranked, false), nil
}

// handlePatternSearch runs a partial-pattern search.
func (s *Server) handlePatternSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PatternInput,
) (*mcp.CallToolResult, PatternOutput, error) {
	threshold := input.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	matches, err := s.ports.Similarity.PatternSearch(ctx, input.Pattern, threshold)
	if err != nil {
		return nil, PatternOutput{}, err
	}
	if matches == nil {
		matches = []domain.PatternMatch{}
	}
	return nil, PatternOutput{Matches: matches, Count: len(matches)}, nil
}

// handleQuery searches the vector indexes, falling back to exact lookups.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, RankOutput, error) {
	if (input.Text == "") == (input.EntityID == "") {
		return nil, RankOutput{}, fmt.Errorf("exactly one of text or entity_id is required: %w", domain.ErrInvalidInput)
	}
	k := input.K
	if k <= 0 {
		k = defaultLimit
	}

	var (
		ranked []domain.RankedEntity
		err    = domain.ErrVectorIndexUnavailable
	)
	if s.ports.Index != nil {
		if input.EntityID != "" {
			ranked, err = s.ports.Index.QueryEntity(ctx, input.EntityID, k)
		} else {
			ranked, err = s.ports.Index.QueryText(ctx, input.Text, k)
		}
	}
	if !indexUnavailable(err) {
		if err != nil {
			return nil, RankOutput{}, err
		}
		return nil, rankOutput(ranked, false), nil
	}

	if input.EntityID != "" {
		ranked, err = s.ports.Similarity.Rank(ctx, input.EntityID, k)
	} else {
		var profiles []domain.EntityProfile
		profiles, err = s.ports.Reader.SearchProfiles(ctx, input.Text, k)
		for i := range profiles {
			ranked = append(ranked, domain.RankedEntity{EntityID: profiles[i].EntityID, Similarity: 1})
		}
	}
	if err != nil {
		return nil, RankOutput{}, err
	}
	return nil, rankOutput(ranked, true), nil
}

// handleSearchProfiles runs the non-vector profile lookup.
func (s *Server) handleSearchProfiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	profiles, err := s.ports.Reader.SearchProfiles(ctx, input.Term, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	out := SearchOutput{Results: make([]ProfileSummary, len(profiles)), Count: len(profiles)}
	for i := range profiles {
		out.Results[i] = ProfileSummary{
			EntityID:    profiles[i].EntityID,
			RecordCount: profiles[i].RecordCount,
			Confidence:  profiles[i].Confidence,
		}
	}
	return nil, out, nil
}

func rankOutput(ranked []domain.RankedEntity, fallback bool) RankOutput {
	if ranked == nil {
		ranked = []domain.RankedEntity{}
	}
	return RankOutput{Results: ranked, Count: len(ranked), Fallback: fallback}
}

func indexUnavailable(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrVectorIndexUnavailable) ||
		errors.Is(err, domain.ErrIndexCorrupt)
}

func lineRows(lines []domain.JurisprudentialLine) []domain.LineRow {
	rows := make([]domain.LineRow, 0, len(lines))
	for i := range lines {
		rows = append(rows, lines[i].Row())
	}
	return rows
}

// jsonResult returns v as text content. Rows carry optional metrics that
// encode as null, so they are sent as JSON text rather than structured output.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
