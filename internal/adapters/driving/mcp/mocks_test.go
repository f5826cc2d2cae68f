package mcp

import (
	"context"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// mockReader is a mock implementation of driving.ProfileReader.
type mockReader struct {
	profiles []domain.EntityProfile
	lines    []domain.JurisprudentialLine
	err      error
	lastTerm string
}

func (m *mockReader) GetProfile(_ context.Context, entityID string) (*domain.EntityProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.profiles {
		if m.profiles[i].EntityID == entityID {
			return &m.profiles[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockReader) ListProfiles(_ context.Context) ([]domain.EntityProfile, error) {
	return m.profiles, m.err
}

func (m *mockReader) GetLines(_ context.Context, _ string) ([]domain.JurisprudentialLine, error) {
	return m.lines, m.err
}

func (m *mockReader) SearchProfiles(_ context.Context, term string, _ int) ([]domain.EntityProfile, error) {
	m.lastTerm = term
	return m.profiles, m.err
}

// mockSimilarity is a mock implementation of driving.SimilarityService.
type mockSimilarity struct {
	result  *domain.SimilarityResult
	ranked  []domain.RankedEntity
	matches []domain.PatternMatch
	err     error

	lastN         int
	lastThreshold float64
}

func (m *mockSimilarity) Compare(_ context.Context, _, _ string, n int) (*domain.SimilarityResult, error) {
	m.lastN = n
	return m.result, m.err
}

func (m *mockSimilarity) Rank(_ context.Context, _ string, limit int) ([]domain.RankedEntity, error) {
	m.lastN = limit
	return m.ranked, m.err
}

func (m *mockSimilarity) PatternSearch(
	_ context.Context, _ map[string]float64, threshold float64,
) ([]domain.PatternMatch, error) {
	m.lastThreshold = threshold
	return m.matches, m.err
}

func (m *mockSimilarity) Matrix(_ context.Context) (*domain.SimilarityMatrix, error) {
	return &domain.SimilarityMatrix{}, m.err
}

// mockIndex is a mock implementation of driving.IndexService.
type mockIndex struct {
	ranked []domain.RankedEntity
	err    error
}

func (m *mockIndex) Status(_ context.Context) []domain.IndexStatus { return nil }
func (m *mockIndex) EnsureBuilt(_ context.Context) error           { return m.err }
func (m *mockIndex) Rebuild(_ context.Context) error               { return m.err }

func (m *mockIndex) QueryText(_ context.Context, _ string, _ int) ([]domain.RankedEntity, error) {
	return m.ranked, m.err
}

func (m *mockIndex) QueryEntity(_ context.Context, _ string, _ int) ([]domain.RankedEntity, error) {
	return m.ranked, m.err
}

func (m *mockIndex) CleanupOrphans(_ context.Context) (*domain.CleanupReport, error) {
	return &domain.CleanupReport{}, m.err
}

func testProfile(id string) domain.EntityProfile {
	return domain.EntityProfile{
		EntityID:    id,
		RecordCount: 3,
		Judicial:    domain.JudicialLayer{Activism: domain.Some(0.6)},
		Confidence:  0.5,
	}
}
