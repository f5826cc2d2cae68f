package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
)

type mockIngest struct {
	files []string
}

func (m *mockIngest) IngestFile(_ context.Context, path string) (*domain.IngestReport, error) {
	m.files = append(m.files, path)
	return &domain.IngestReport{Source: path, Accepted: 2, Skipped: 1, Entities: []string{"judge-a"}}, nil
}

func (m *mockIngest) Ingest(_ context.Context, _ io.Reader, name string) (*domain.IngestReport, error) {
	return &domain.IngestReport{Source: name}, nil
}

type mockAggregator struct {
	err      error
	report   *domain.BatchReport
	allCalls int
}

func (m *mockAggregator) Aggregate(_ context.Context, entityID string) (*domain.AggregationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	p := testProfile(entityID)
	return &domain.AggregationResult{Profile: &p, Skipped: 1}, nil
}

func (m *mockAggregator) AggregateAll(_ context.Context) (*domain.BatchReport, error) {
	m.allCalls++
	return m.report, m.err
}

type mockLines struct {
	opts   driving.LineOptions
	report *domain.BatchReport
	err    error
}

func (m *mockLines) Analyze(_ context.Context, entityID string, opts driving.LineOptions) (*domain.LineAnalysis, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.LineAnalysis{
		EntityID:      entityID,
		Lines:         []domain.JurisprudentialLine{testLine(entityID)},
		DroppedGroups: []string{"tax"},
	}, nil
}

func (m *mockLines) AnalyzeAll(_ context.Context, opts driving.LineOptions) (*domain.BatchReport, error) {
	m.opts = opts
	return m.report, nil
}

type mockReader struct {
	profiles []domain.EntityProfile
	lines    []domain.JurisprudentialLine
}

func (m *mockReader) GetProfile(_ context.Context, entityID string) (*domain.EntityProfile, error) {
	for i := range m.profiles {
		if m.profiles[i].EntityID == entityID {
			return &m.profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", entityID, domain.ErrNotFound)
}

func (m *mockReader) ListProfiles(_ context.Context) ([]domain.EntityProfile, error) {
	return m.profiles, nil
}

func (m *mockReader) GetLines(_ context.Context, _ string) ([]domain.JurisprudentialLine, error) {
	return m.lines, nil
}

func (m *mockReader) SearchProfiles(_ context.Context, _ string, _ int) ([]domain.EntityProfile, error) {
	return m.profiles, nil
}

type mockSimilarity struct {
	pattern   map[string]float64
	threshold float64
	rankLimit int
}

func (m *mockSimilarity) Compare(_ context.Context, a, b string, _ int) (*domain.SimilarityResult, error) {
	return &domain.SimilarityResult{
		EntityA:          a,
		EntityB:          b,
		CosineSimilarity: 0.91,
		Affinity:         domain.AffinityHigh,
		Differentiators:  []domain.Differentiator{{Key: "judicial.activism", ValueA: 0.9, ValueB: 0.1, Delta: 0.8}},
		Sections:         []domain.SectionSimilarity{{Section: "judicial", Similarity: 0.5}},
	}, nil
}

func (m *mockSimilarity) Rank(_ context.Context, _ string, limit int) ([]domain.RankedEntity, error) {
	m.rankLimit = limit
	return []domain.RankedEntity{{EntityID: "judge-b", Similarity: 0.75}}, nil
}

func (m *mockSimilarity) PatternSearch(
	_ context.Context, pattern map[string]float64, threshold float64,
) ([]domain.PatternMatch, error) {
	m.pattern = pattern
	m.threshold = threshold
	return []domain.PatternMatch{{EntityID: "judge-a", Similarity: 0.99, Dimensions: []string{"judicial.activism"}}}, nil
}

func (m *mockSimilarity) Matrix(_ context.Context) (*domain.SimilarityMatrix, error) {
	return &domain.SimilarityMatrix{
		EntityIDs: []string{"a", "b"},
		Values:    [][]float64{{1, 0.5}, {0.5, 1}},
	}, nil
}

type mockIndex struct {
	queryErr error
	rebuilt  bool
	k        int
}

func (m *mockIndex) Status(_ context.Context) []domain.IndexStatus {
	return []domain.IndexStatus{
		{Name: "profiles", State: domain.IndexReady, Count: 3, Dimensions: 45, Tag: "v1"},
		{Name: "signatures", State: domain.IndexDisabled, Reason: "no embedding provider"},
	}
}

func (m *mockIndex) EnsureBuilt(_ context.Context) error { return nil }

func (m *mockIndex) Rebuild(_ context.Context) error {
	m.rebuilt = true
	return nil
}

func (m *mockIndex) QueryText(_ context.Context, _ string, k int) ([]domain.RankedEntity, error) {
	m.k = k
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return []domain.RankedEntity{{EntityID: "judge-c", Similarity: 0.6, Detail: "activism=0.6"}}, nil
}

func (m *mockIndex) QueryEntity(_ context.Context, _ string, k int) ([]domain.RankedEntity, error) {
	m.k = k
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return []domain.RankedEntity{{EntityID: "judge-c", Similarity: 0.6}}, nil
}

func (m *mockIndex) CleanupOrphans(_ context.Context) (*domain.CleanupReport, error) {
	return &domain.CleanupReport{Removed: []string{"/tmp/x.vec"}, Kept: 2}, nil
}

type mockSettings struct {
	values      map[string]string
	embedding   domain.AIProvider
	validateErr error
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings("/data")
	if m.embedding != "" {
		s.Embedding.Provider = m.embedding
	}
	return &s, nil
}

func (m *mockSettings) ValidateEmbedding() error {
	return m.validateErr
}

func (m *mockSettings) Value(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("unknown key %q: %w", key, domain.ErrInvalidInput)
	}
	return v, nil
}

func (m *mockSettings) Set(key, raw string) error {
	if _, ok := m.values[key]; !ok {
		return fmt.Errorf("unknown key %q: %w", key, domain.ErrInvalidInput)
	}
	m.values[key] = raw
	return nil
}

func (m *mockSettings) List() []driving.SettingEntry {
	return []driving.SettingEntry{
		{Key: "batch.workers", Value: "8", Default: "4", Configured: true},
		{Key: "index.top_k", Value: "8", Default: "8"},
	}
}

func (m *mockSettings) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings("/data")
}

func testProfile(id string) domain.EntityProfile {
	return domain.EntityProfile{
		EntityID:          id,
		RecordCount:       4,
		Judicial:          domain.JudicialLayer{Activism: domain.Some(0.6), NormativeInterpretation: "literal"},
		RecurringTopics:   []domain.TopicCount{{Topic: "damages", Count: 3}},
		Confidence:        0.5,
		ConfidenceModel:   "step",
		ConsolidatedLines: map[string]float64{"damages": 0.8},
		InconsistentLines: []string{"tax"},
	}
}

func testLine(entityID string) domain.JurisprudentialLine {
	return domain.JurisprudentialLine{
		ID:               "line-1",
		EntityID:         entityID,
		Topic:            "damages",
		RecordIDs:        []string{"d1", "d2", "d3"},
		ConsistencyScore: 0.8,
		Criterion:        "Tends to grant claims, using literal interpretation.",
	}
}

type testServices struct {
	ingest     *mockIngest
	aggregator *mockAggregator
	lines      *mockLines
	reader     *mockReader
	similarity *mockSimilarity
	index      *mockIndex
	settings   *mockSettings
}

// setupTestServices installs mock services and returns them with a cleanup func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingest:     &mockIngest{},
		aggregator: &mockAggregator{report: &domain.BatchReport{}},
		lines:      &mockLines{report: &domain.BatchReport{}},
		reader: &mockReader{
			profiles: []domain.EntityProfile{testProfile("judge-a")},
			lines:    []domain.JurisprudentialLine{testLine("judge-a")},
		},
		similarity: &mockSimilarity{},
		index:      &mockIndex{},
		settings: &mockSettings{values: map[string]string{
			"batch.workers":        "4",
			"index.top_k":          "8",
			"lines.min_group_size": "2",
		}},
	}
	SetServices(Services{
		Ingest:     ts.ingest,
		Aggregator: ts.aggregator,
		Lines:      ts.lines,
		Reader:     ts.reader,
		Similarity: ts.similarity,
		Index:      ts.index,
		Settings:   ts.settings,
	})
	return ts, func() { SetServices(Services{}) }
}

// execute runs the root command with fresh flag values and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
