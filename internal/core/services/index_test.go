package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cogniprof/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

type indexFixture struct {
	svc        *IndexService
	profiles   *memory.ProfileStore
	vectors    *mockVectorStore
	profileIdx *mockVectorIndex
	sigIdx     *mockVectorIndex
	embedder   *mockEmbeddingService
}

func newIndexFixture(t *testing.T, withEmbedder bool) *indexFixture {
	t.Helper()
	f := &indexFixture{
		profiles:   memory.NewProfileStore(),
		vectors:    newMockVectorStore(),
		profileIdx: &mockVectorIndex{name: ProfileIndexName},
		sigIdx:     &mockVectorIndex{name: SignatureIndexName},
	}
	ctx := context.Background()
	for _, p := range []domain.EntityProfile{
		profileWith("a", map[string]float64{"deductive": 1}),
		profileWith("b", map[string]float64{"deductive": 1, "inductive": 0.2}),
		profileWith("c", map[string]float64{"inductive": 1}),
	} {
		require.NoError(t, f.profiles.Replace(ctx, &p))
	}
	if withEmbedder {
		f.embedder = &mockEmbeddingService{embedding: []float32{1, 0, 0}}
		f.svc = NewIndexService(f.profiles, f.vectors, NewVectorizer(nil), f.profileIdx, f.sigIdx, f.embedder, IndexOptions{})
	} else {
		f.svc = NewIndexService(f.profiles, f.vectors, NewVectorizer(nil), f.profileIdx, f.sigIdx, nil, IndexOptions{})
	}
	return f
}

func TestIndexService_StatusDisabledWithoutEmbedder(t *testing.T) {
	f := newIndexFixture(t, false)
	status := f.svc.Status(context.Background())
	require.Len(t, status, 2)
	assert.Equal(t, ProfileIndexName, status[0].Name)
	assert.Equal(t, domain.IndexMissing, status[0].State)
	assert.Equal(t, SignatureIndexName, status[1].Name)
	assert.Equal(t, domain.IndexDisabled, status[1].State)
}

func TestIndexService_QueryTextDisabled(t *testing.T) {
	f := newIndexFixture(t, false)
	_, err := f.svc.QueryText(context.Background(), "formalist judges", 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	svc := NewIndexService(f.profiles, nil, NewVectorizer(nil), nil, nil, &mockEmbeddingService{}, IndexOptions{})
	_, err = svc.QueryText(context.Background(), "x", 5)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	_, err = svc.QueryEntity(context.Background(), "a", 5)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestIndexService_EnsureBuiltIsLazy(t *testing.T) {
	f := newIndexFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureBuilt(ctx))
	assert.Equal(t, 1, f.profileIdx.builds)
	assert.Equal(t, 1, f.sigIdx.builds)
	assert.Equal(t, domain.DefaultManifestVersion, f.profileIdx.tag)
	assert.Equal(t, "mock-embed", f.sigIdx.tag)

	require.NoError(t, f.svc.EnsureBuilt(ctx))
	assert.Equal(t, 1, f.profileIdx.builds)

	require.NoError(t, f.svc.Rebuild(ctx))
	assert.Equal(t, 2, f.profileIdx.builds)
	assert.Equal(t, 2, f.sigIdx.builds)
}

func TestIndexService_EnsureBuiltRebuildsCorrupt(t *testing.T) {
	f := newIndexFixture(t, false)
	f.profileIdx.loadErr = domain.ErrIndexCorrupt
	require.NoError(t, f.svc.EnsureBuilt(context.Background()))
	assert.Equal(t, 1, f.profileIdx.builds)
	assert.Equal(t, 0, f.sigIdx.builds)
}

func TestIndexService_RebuildWritesMissingVectors(t *testing.T) {
	f := newIndexFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))

	p, err := f.profiles.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.VectorPath, "/vectors/a."), p.VectorPath)
	assert.Len(t, f.profileIdx.onDisk, 3)
	assert.Contains(t, f.profileIdx.onDisk[0].Detail, "entity a")
}

func TestIndexService_RebuildRevectorizesOnManifestMismatch(t *testing.T) {
	f := newIndexFixture(t, false)
	ctx := context.Background()
	path, err := f.vectors.Write(ctx, "a", "old-run", "v0", domain.Vector{9})
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetVectorPath(ctx, "a", path, "v0"))

	require.NoError(t, f.svc.Rebuild(ctx))

	p, err := f.profiles.Get(ctx, "a")
	require.NoError(t, err)
	assert.NotEqual(t, path, p.VectorPath)
	vec, err := f.vectors.Read(ctx, p.VectorPath, domain.DefaultManifestVersion)
	require.NoError(t, err)
	assert.Len(t, vec, domain.DefaultManifest().Len())
}

func TestIndexService_QueryEntityExcludesSelf(t *testing.T) {
	f := newIndexFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))

	hits, err := f.svc.QueryEntity(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].EntityID)
}

func TestIndexService_QueryEntityBuildsLazily(t *testing.T) {
	f := newIndexFixture(t, false)
	ctx := context.Background()

	hits, err := f.svc.QueryEntity(ctx, "a", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, f.profileIdx.builds)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].EntityID)

	_, err = f.svc.QueryEntity(ctx, "b", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, f.profileIdx.builds, "a ready index is not rebuilt")
}

func TestIndexService_QueryEntityLoadFailure(t *testing.T) {
	f := newIndexFixture(t, false)
	f.profileIdx.loadErr = errors.New("permission denied")

	_, err := f.svc.QueryEntity(context.Background(), "a", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 0, f.profileIdx.builds)
}

func TestIndexService_QueryText(t *testing.T) {
	f := newIndexFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))

	hits, err := f.svc.QueryText(ctx, "deductive formalist", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 1.0, hits[0].Similarity)
}

func TestIndexService_QueryTextTimeout(t *testing.T) {
	f := newIndexFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))

	f.embedder.delay = time.Second
	svc := NewIndexService(f.profiles, f.vectors, NewVectorizer(nil), f.profileIdx, f.sigIdx, f.embedder,
		IndexOptions{QueryTimeout: 10 * time.Millisecond})

	_, err := svc.QueryText(ctx, "slow", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestIndexService_CleanupOrphans(t *testing.T) {
	f := newIndexFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))
	_, err := f.vectors.Write(ctx, "deleted-entity", "r1", domain.DefaultManifestVersion, domain.Vector{1})
	require.NoError(t, err)

	report, err := f.svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/vectors/deleted-entity.r1.vec"}, report.Removed)
	assert.Equal(t, 3, report.Kept)

	svc := NewIndexService(f.profiles, nil, NewVectorizer(nil), nil, nil, nil, IndexOptions{})
	report, err = svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
}
