package driving

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// ProfileAggregator consolidates an entity's records into its profile.
type ProfileAggregator interface {
	// Aggregate recomputes and replaces one entity's profile.
	// Returns domain.ErrNoData when the entity has no record with judicial data;
	// no profile row is written in that case.
	Aggregate(ctx context.Context, entityID string) (*domain.AggregationResult, error)

	// AggregateAll aggregates every entity holding at least one record.
	AggregateAll(ctx context.Context) (*domain.BatchReport, error)
}

// LineOptions tunes line analysis.
type LineOptions struct {
	// MinGroupSize drops topic groups smaller than this. Zero means domain.DefaultMinGroupSize.
	MinGroupSize int

	// MissingRatio selects how unobserved agreement ratios are scored.
	MissingRatio domain.MissingRatioPolicy
}

// LineAnalyzer detects jurisprudential lines per entity and topic.
type LineAnalyzer interface {
	// Analyze recomputes and replaces one entity's lines, then updates its profile summary.
	Analyze(ctx context.Context, entityID string, opts LineOptions) (*domain.LineAnalysis, error)

	// AnalyzeAll analyzes every entity holding at least one record.
	AnalyzeAll(ctx context.Context, opts LineOptions) (*domain.BatchReport, error)
}

// ProfileReader exposes stored profiles and lines to report generators.
type ProfileReader interface {
	GetProfile(ctx context.Context, entityID string) (*domain.EntityProfile, error)
	ListProfiles(ctx context.Context) ([]domain.EntityProfile, error)
	GetLines(ctx context.Context, entityID string) ([]domain.JurisprudentialLine, error)

	// SearchProfiles is the non-vector lookup used when the index is disabled.
	SearchProfiles(ctx context.Context, term string, limit int) ([]domain.EntityProfile, error)
}
