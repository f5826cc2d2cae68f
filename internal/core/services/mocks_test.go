package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// fixedClock implements Clock for testing.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// mockVectorIndex implements driven.VectorIndex for testing with a brute-force scan.
type mockVectorIndex struct {
	name      string
	onDisk    []driven.IndexEntry
	loaded    []driven.IndexEntry
	tag       string
	builds    int
	loadErr   error
	searchErr error
	ready     bool
}

func (m *mockVectorIndex) Name() string { return m.name }

func (m *mockVectorIndex) Build(_ context.Context, entries []driven.IndexEntry, tag string) error {
	m.builds++
	m.onDisk = append([]driven.IndexEntry(nil), entries...)
	m.loaded = m.onDisk
	m.tag = tag
	m.ready = true
	m.loadErr = nil
	return nil
}

func (m *mockVectorIndex) Load(_ context.Context) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	if m.onDisk == nil {
		return domain.ErrVectorIndexUnavailable
	}
	m.loaded = m.onDisk
	m.ready = true
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.IndexHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	q := domain.FromFloat32(query)
	hits := make([]driven.IndexHit, 0, len(m.loaded))
	for _, e := range m.loaded {
		hits = append(hits, driven.IndexHit{
			EntityID:   e.EntityID,
			Similarity: q.Cosine(domain.FromFloat32(e.Vector)),
			Detail:     e.Detail,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockVectorIndex) Status() domain.IndexStatus {
	state := domain.IndexMissing
	if m.ready {
		state = domain.IndexReady
	}
	return domain.IndexStatus{Name: m.name, State: state, Count: len(m.loaded), Tag: m.tag}
}

func (m *mockVectorIndex) Close() error { return nil }

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	delay     time.Duration
	calls     int
}

func (m *mockEmbeddingService) Embed(ctx context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		e, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return len(m.embedding) }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	mu      sync.Mutex
	files   map[string]storedVector
	removed []string
}

type storedVector struct {
	version string
	vector  domain.Vector
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{files: map[string]storedVector{}}
}

func (m *mockVectorStore) Write(_ context.Context, entityID, runID, version string, v domain.Vector) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "/vectors/" + entityID + "." + runID + ".vec"
	m.files[path] = storedVector{version: version, vector: append(domain.Vector(nil), v...)}
	return path, nil
}

func (m *mockVectorStore) Read(_ context.Context, path, version string) (domain.Vector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sv, ok := m.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sv.version != version {
		return nil, domain.ErrManifestMismatch
	}
	return sv.vector, nil
}

func (m *mockVectorStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockVectorStore) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

// failingProfileStore wraps a ProfileStore and fails Replace for one entity.
type failingProfileStore struct {
	driven.ProfileStore
	failFor string
	err     error
}

func (f *failingProfileStore) Replace(ctx context.Context, p *domain.EntityProfile) error {
	if p.EntityID == f.failFor {
		return f.err
	}
	return f.ProfileStore.Replace(ctx, p)
}

// judicialRecord builds a record carrying judicial data.
func judicialRecord(entity, doc, topic, outcome string, j domain.JudicialLayer) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		EntityID:   entity,
		DocumentID: doc,
		Topic:      topic,
		Outcome:    outcome,
		Judicial:   &j,
	}
}
