package sqlite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
	}
	return store, cleanup
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRecord(entity, doc, topic, outcome string, activism float64) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		EntityID:   entity,
		DocumentID: doc,
		Topic:      topic,
		Outcome:    outcome,
		Date:       time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC),
		Cognition: domain.CognitiveLayer{
			Reasoning: domain.ScoreMap{"deductive": 0.8},
		},
		Judicial: &domain.JudicialLayer{
			Activism:                domain.Some(activism),
			AppliedTests:            domain.ScoreMap{"proportionality": 0.9},
			NormativeInterpretation: "literal",
		},
		IngestedAt: testNow,
	}
}

func testProfile(entity string) *domain.EntityProfile {
	return &domain.EntityProfile{
		EntityID:    entity,
		RecordCount: 3,
		Judicial: domain.JudicialLayer{
			Activism:                domain.Some(0.4),
			Formalism:               domain.Some(0.7),
			AppliedTests:            domain.ScoreMap{"proportionality": 0.6},
			NormativeInterpretation: "literal",
		},
		CategoricalFrequency: map[string]map[string]int{
			domain.FieldNormativeInterpretation: {"literal": 2, "systematic": 1},
		},
		Cognition: domain.CognitiveLayer{
			Reasoning: domain.ScoreMap{"deductive": 0.5},
		},
		RecurringTopics:   []domain.TopicCount{{Topic: "damages", Count: 2}},
		Confidence:        0.5,
		ConfidenceModel:   "step",
		ConsolidatedLines: map[string]float64{"damages": 0.8},
		ManifestVersion:   domain.DefaultManifestVersion,
		RunID:             "run-1",
		UpdatedAt:         testNow,
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_Success(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_MigrationsRecorded(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestStore_InterfaceGetters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NotNil(t, store.RecordStore())
	assert.NotNil(t, store.ProfileStore())
	assert.NotNil(t, store.LineStore())
}

// ==================== Record Store Tests ====================

func TestRecordStore_SaveAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.RecordStore()

	require.NoError(t, records.SaveBatch(ctx, []domain.AnalysisRecord{
		testRecord("judge-a", "doc-2", "damages", "granted", 0.6),
		testRecord("judge-a", "doc-1", "damages", "denied", 0.2),
		testRecord("judge-b", "doc-3", "custody", "granted", 0.9),
	}))

	got, err := records.ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-1", got[0].DocumentID)
	assert.Equal(t, "denied", got[0].Outcome)
	assert.Equal(t, "2020-03-15", got[0].Date.Format(domain.DateLayout))
	assert.Equal(t, 0.8, got[0].Cognition.Reasoning["deductive"])
	require.NotNil(t, got[0].Judicial)
	assert.Equal(t, domain.Some(0.2), got[0].Judicial.Activism)
	assert.False(t, got[0].Judicial.Formalism.Valid)
	assert.Equal(t, domain.Label("literal"), got[0].Judicial.NormativeInterpretation)
	assert.True(t, got[0].IngestedAt.Equal(testNow))

	n, err := records.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordStore_SaveReplacesSameKey(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.RecordStore()

	r := testRecord("judge-a", "doc-1", "damages", "granted", 0.6)
	require.NoError(t, records.Save(ctx, &r))
	r.Outcome = "denied"
	require.NoError(t, records.Save(ctx, &r))

	got, err := records.ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "denied", got[0].Outcome)
}

func TestRecordStore_NoJudicialNoDate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.RecordStore()

	r := domain.AnalysisRecord{EntityID: "judge-a", DocumentID: "doc-1", IngestedAt: testNow}
	require.NoError(t, records.Save(ctx, &r))

	got, err := records.ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Judicial)
	assert.True(t, got[0].Date.IsZero())
}

func TestRecordStore_SaveBatchInvalidRollsBack(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.RecordStore()

	err := records.SaveBatch(ctx, []domain.AnalysisRecord{
		testRecord("judge-a", "doc-1", "damages", "granted", 0.6),
		{EntityID: "judge-a"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	n, err := records.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordStore_ListEntities(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.RecordStore()

	require.NoError(t, records.SaveBatch(ctx, []domain.AnalysisRecord{
		testRecord("judge-b", "doc-1", "damages", "granted", 0.6),
		testRecord("judge-b", "doc-2", "damages", "granted", 0.6),
		testRecord("judge-a", "doc-3", "damages", "granted", 0.6),
	}))

	all, err := records.ListEntities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"judge-a", "judge-b"}, all)

	atLeastTwo, err := records.ListEntities(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"judge-b"}, atLeastTwo)
}

// ==================== Profile Store Tests ====================

func TestProfileStore_ReplaceAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	profiles := store.ProfileStore()

	require.NoError(t, profiles.Replace(ctx, testProfile("judge-a")))

	got, err := profiles.Get(ctx, "judge-a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.RecordCount)
	assert.Equal(t, domain.Some(0.4), got.Judicial.Activism)
	assert.False(t, got.Judicial.RightsProtection.Valid)
	assert.Equal(t, domain.ScoreMap{"proportionality": 0.6}, got.Judicial.AppliedTests)
	assert.Nil(t, got.Judicial.Biases)
	assert.Equal(t, domain.Label("literal"), got.Judicial.NormativeInterpretation)
	assert.Equal(t, 2, got.CategoricalFrequency[domain.FieldNormativeInterpretation]["literal"])
	assert.Equal(t, 0.5, got.Cognition.Reasoning["deductive"])
	assert.Equal(t, []domain.TopicCount{{Topic: "damages", Count: 2}}, got.RecurringTopics)
	assert.Equal(t, map[string]float64{"damages": 0.8}, got.ConsolidatedLines)
	assert.Empty(t, got.InconsistentLines)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.UpdatedAt.Equal(testNow))
}

func TestProfileStore_ReplaceOverwrites(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	profiles := store.ProfileStore()

	require.NoError(t, profiles.Replace(ctx, testProfile("judge-a")))
	next := testProfile("judge-a")
	next.RecordCount = 5
	next.Judicial.Formalism = domain.Metric{}
	next.RunID = "run-2"
	require.NoError(t, profiles.Replace(ctx, next))

	got, err := profiles.Get(ctx, "judge-a")
	require.NoError(t, err)
	assert.Equal(t, 5, got.RecordCount)
	assert.False(t, got.Judicial.Formalism.Valid)
	assert.Equal(t, "run-2", got.RunID)

	all, err := profiles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProfileStore_ReplaceFailureKeepsPriorRow(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	profiles := store.ProfileStore()

	require.NoError(t, profiles.Replace(ctx, testProfile("judge-a")))

	// Confidence outside [0, 1] violates the table constraint after the delete ran.
	bad := testProfile("judge-a")
	bad.Confidence = 2
	bad.RunID = "run-bad"
	err := profiles.Replace(ctx, bad)
	require.ErrorIs(t, err, domain.ErrPersistence)

	got, err := profiles.Get(ctx, "judge-a")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
}

func TestProfileStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ProfileStore().Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileStore_VectorPaths(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	profiles := store.ProfileStore()

	require.NoError(t, profiles.Replace(ctx, testProfile("judge-a")))
	require.NoError(t, profiles.Replace(ctx, testProfile("judge-b")))
	require.NoError(t, profiles.SetVectorPath(ctx, "judge-b", "/vectors/judge-b.vec", "v2"))

	paths, err := profiles.ReferencedVectorPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/vectors/judge-b.vec"}, paths)

	got, err := profiles.Get(ctx, "judge-b")
	require.NoError(t, err)
	assert.Equal(t, "/vectors/judge-b.vec", got.VectorPath)
	assert.Equal(t, "v2", got.ManifestVersion)

	err = profiles.SetVectorPath(ctx, "nobody", "/vectors/x.vec", "v1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileStore_Search(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	profiles := store.ProfileStore()

	a := testProfile("judge-a")
	b := testProfile("judge-b")
	b.Judicial.NormativeInterpretation = "Teleological"
	b.RecurringTopics = []domain.TopicCount{{Topic: "custody", Count: 4}}
	require.NoError(t, profiles.Replace(ctx, a))
	require.NoError(t, profiles.Replace(ctx, b))

	tests := []struct {
		name  string
		term  string
		limit int
		want  []string
	}{
		{"by id", "judge-a", 10, []string{"judge-a"}},
		{"by label case-insensitive", "teleological", 10, []string{"judge-b"}},
		{"by topic", "custody", 10, []string{"judge-b"}},
		{"shared prefix limited", "judge", 1, []string{"judge-a"}},
		{"wildcard escaped", "%", 10, nil},
		{"empty term", "  ", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := profiles.Search(ctx, tt.term, tt.limit)
			require.NoError(t, err)
			var ids []string
			for _, p := range got {
				ids = append(ids, p.EntityID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// ==================== Line Store Tests ====================

func testLine(id, entity, topic string, score float64) domain.JurisprudentialLine {
	agreement := 0.75
	return domain.JurisprudentialLine{
		ID:                  id,
		EntityID:            entity,
		Topic:               topic,
		RecordIDs:           []string{"doc-1", "doc-2"},
		FirstDate:           time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC),
		LastDate:            time.Date(2021, 5, 6, 0, 0, 0, 0, time.UTC),
		DominantOutcome:     "granted",
		Criterion:           "Tends to grant claims",
		OutcomeAgreement:    &agreement,
		ConsistencyScore:    score,
		ConsistentCount:     1,
		InconsistentCount:   1,
		RecurringTests:      []string{"proportionality"},
		ParadigmaticCaseIDs: []string{"doc-1"},
		Exceptions:          []domain.LineException{{DocumentID: "doc-2", Outcome: "denied", Reason: "outcome differs from dominant (granted)"}},
		PredictiveFactors:   []domain.PredictiveFactor{{Factor: "topic=damages", Weight: 1}},
		Confidence:          0.2,
		AnalyzedAt:          testNow,
	}
}

func TestLineStore_ReplaceAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, store.ProfileStore().Replace(ctx, testProfile("judge-a")))

	lines := []domain.JurisprudentialLine{
		testLine("l-2", "judge-a", "housing", 0.4),
		testLine("l-1", "judge-a", "damages", 0.8),
	}
	summary := domain.SummarizeLines(lines)
	require.NoError(t, store.LineStore().ReplaceForEntity(ctx, "judge-a", lines, summary))

	got, err := store.LineStore().ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "damages", got[0].Topic)
	assert.Equal(t, []string{"doc-1", "doc-2"}, got[0].RecordIDs)
	assert.Equal(t, "2019-01-02", got[0].FirstDate.Format(domain.DateLayout))
	require.NotNil(t, got[0].OutcomeAgreement)
	assert.Equal(t, 0.75, *got[0].OutcomeAgreement)
	assert.Nil(t, got[0].InterpretationAgreement)
	assert.Equal(t, lines[1].Exceptions, got[0].Exceptions)
	assert.Equal(t, lines[1].PredictiveFactors, got[0].PredictiveFactors)
	assert.True(t, got[0].AnalyzedAt.Equal(testNow))

	profile, err := store.ProfileStore().Get(ctx, "judge-a")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"damages": 0.8}, profile.ConsolidatedLines)
	assert.Equal(t, []string{"housing"}, profile.InconsistentLines)
}

func TestLineStore_ReplaceRemovesStaleLines(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	lineStore := store.LineStore()

	first := []domain.JurisprudentialLine{testLine("l-1", "judge-a", "damages", 0.8)}
	require.NoError(t, lineStore.ReplaceForEntity(ctx, "judge-a", first, domain.SummarizeLines(first)))
	second := []domain.JurisprudentialLine{testLine("l-9", "judge-a", "custody", 0.6)}
	require.NoError(t, lineStore.ReplaceForEntity(ctx, "judge-a", second, domain.SummarizeLines(second)))

	got, err := lineStore.ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "custody", got[0].Topic)
}

func TestLineStore_FailureRollsBack(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, store.ProfileStore().Replace(ctx, testProfile("judge-a")))
	lineStore := store.LineStore()

	first := []domain.JurisprudentialLine{testLine("l-1", "judge-a", "damages", 0.8)}
	require.NoError(t, lineStore.ReplaceForEntity(ctx, "judge-a", first, domain.SummarizeLines(first)))

	// Duplicate topic violates the unique constraint midway through the insert.
	broken := []domain.JurisprudentialLine{
		testLine("l-2", "judge-a", "custody", 0.3),
		testLine("l-3", "judge-a", "custody", 0.3),
	}
	err := lineStore.ReplaceForEntity(ctx, "judge-a", broken, domain.SummarizeLines(broken))
	require.ErrorIs(t, err, domain.ErrPersistence)

	got, err := lineStore.ListByEntity(ctx, "judge-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "damages", got[0].Topic)

	profile, err := store.ProfileStore().Get(ctx, "judge-a")
	require.NoError(t, err)
	assert.Empty(t, profile.InconsistentLines)
}

func TestLineStore_WithoutProfile(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetVerbose(true)
	t.Cleanup(func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	})

	lines := []domain.JurisprudentialLine{testLine("l-1", "judge-z", "damages", 0.8)}
	require.NoError(t, store.LineStore().ReplaceForEntity(ctx, "judge-z", lines, domain.SummarizeLines(lines)))

	got, err := store.LineStore().ListByEntity(ctx, "judge-z")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, buf.String(), "[WARN] Entity judge-z has no profile; line summary not stored")
}
