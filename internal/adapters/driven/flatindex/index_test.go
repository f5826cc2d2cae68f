package flatindex

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

func sampleEntries() []driven.IndexEntry {
	return []driven.IndexEntry{
		{EntityID: "judge-a", Detail: "entity judge-a", Vector: []float32{1, 0, 0}},
		{EntityID: "judge-b", Detail: "entity judge-b", Vector: []float32{2, 2, 0}},
		{EntityID: "judge-c", Detail: "entity judge-c", Vector: []float32{0, 0, 5}},
	}
}

func newBuiltIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := New(dir, "profiles")
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), sampleEntries(), "v1"))
	return idx, dir
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "profiles")
	assert.Error(t, err)
	_, err = New(t.TempDir(), "")
	assert.Error(t, err)
}

func TestIndex_BuildAndSearch(t *testing.T) {
	idx, _ := newBuiltIndex(t)

	hits, err := idx.Search(context.Background(), []float32{3, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "judge-a", hits[0].EntityID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "entity judge-a", hits[0].Detail)
	assert.Equal(t, "judge-b", hits[1].EntityID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)

	st := idx.Status()
	assert.Equal(t, domain.IndexReady, st.State)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 3, st.Dimensions)
	assert.Equal(t, "v1", st.Tag)
	assert.NotEmpty(t, st.BuildID)
}

func TestIndex_SearchTiesBreakOnEntityID(t *testing.T) {
	idx, err := New(t.TempDir(), "profiles")
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), []driven.IndexEntry{
		{EntityID: "judge-z", Vector: []float32{1, 1}},
		{EntityID: "judge-m", Vector: []float32{2, 2}},
	}, "v1"))

	hits, err := idx.Search(context.Background(), []float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "judge-m", hits[0].EntityID)
	assert.Equal(t, "judge-z", hits[1].EntityID)
}

func TestIndex_SearchErrors(t *testing.T) {
	idx, err := New(t.TempDir(), "profiles")
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)

	require.NoError(t, idx.Build(context.Background(), sampleEntries(), "v1"))
	_, err = idx.Search(context.Background(), []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_BuildRejectsMixedDimensions(t *testing.T) {
	idx, err := New(t.TempDir(), "profiles")
	require.NoError(t, err)

	err = idx.Build(context.Background(), []driven.IndexEntry{
		{EntityID: "a", Vector: []float32{1, 2}},
		{EntityID: "b", Vector: []float32{1}},
	}, "v1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.IndexMissing, idx.Status().State)
}

func TestIndex_BuildEmpty(t *testing.T) {
	idx, err := New(t.TempDir(), "profiles")
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), nil, "v1"))

	hits, err := idx.Search(context.Background(), []float32{}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	reloaded, err := New(idx.dir, "profiles")
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, 0, reloaded.Status().Count)
}

func TestIndex_LoadRoundTrip(t *testing.T) {
	idx, dir := newBuiltIndex(t)
	buildID := idx.Status().BuildID

	reloaded, err := New(dir, "profiles")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexMissing, reloaded.Status().State)
	require.NoError(t, reloaded.Load(context.Background()))

	st := reloaded.Status()
	assert.Equal(t, domain.IndexReady, st.State)
	assert.Equal(t, buildID, st.BuildID)
	assert.Equal(t, "v1", st.Tag)

	hits, err := reloaded.Search(context.Background(), []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "judge-c", hits[0].EntityID)
}

func TestIndex_LoadMissingPair(t *testing.T) {
	idx, err := New(t.TempDir(), "profiles")
	require.NoError(t, err)

	err = idx.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	assert.Equal(t, domain.IndexMissing, idx.Status().State)
}

func TestIndex_LoadHalfPair(t *testing.T) {
	idx, dir := newBuiltIndex(t)
	require.NoError(t, os.Remove(idx.MetaPath()))

	reloaded, err := New(dir, "profiles")
	require.NoError(t, err)
	err = reloaded.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.Equal(t, domain.IndexCorrupt, reloaded.Status().State)
}

func TestIndex_LoadBuildIDMismatch(t *testing.T) {
	idx, dir := newBuiltIndex(t)

	data, err := os.ReadFile(idx.MetaPath())
	require.NoError(t, err)
	var sc sidecar
	require.NoError(t, json.Unmarshal(data, &sc))
	sc.BuildID = "someone-else"
	data, err = json.Marshal(sc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(idx.MetaPath(), data, 0600))

	reloaded, err := New(dir, "profiles")
	require.NoError(t, err)
	err = reloaded.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

	_, err = reloaded.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestIndex_LoadTruncated(t *testing.T) {
	idx, dir := newBuiltIndex(t)
	info, err := os.Stat(idx.IndexPath())
	require.NoError(t, err)
	require.NoError(t, os.Truncate(idx.IndexPath(), info.Size()-4))

	reloaded, err := New(dir, "profiles")
	require.NoError(t, err)
	assert.ErrorIs(t, reloaded.Load(context.Background()), domain.ErrIndexCorrupt)
}

func TestIndex_RebuildReplacesPair(t *testing.T) {
	idx, dir := newBuiltIndex(t)
	first := idx.Status().BuildID

	require.NoError(t, idx.Build(context.Background(), sampleEntries()[:1], "v2"))
	assert.NotEqual(t, first, idx.Status().BuildID)

	reloaded, err := New(dir, "profiles")
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, 1, reloaded.Status().Count)
	assert.Equal(t, "v2", reloaded.Status().Tag)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")
}

func TestIndex_Close(t *testing.T) {
	idx, _ := newBuiltIndex(t)
	require.NoError(t, idx.Close())
	assert.NotEqual(t, domain.IndexReady, idx.Status().State)
	_, err := os.Stat(idx.IndexPath())
	assert.NoError(t, err)
}
