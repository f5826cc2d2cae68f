package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// Index names.
const (
	ProfileIndexName   = "profiles"
	SignatureIndexName = "signatures"
)

// DefaultQueryTimeout bounds the embed-and-search path of text queries.
const DefaultQueryTimeout = 15 * time.Second

// IndexOptions configures an IndexService.
type IndexOptions struct {
	QueryTimeout time.Duration
}

// IndexService maintains the profile and signature indexes.
type IndexService struct {
	profiles   driven.ProfileStore
	vectors    driven.VectorStore
	vectorizer *Vectorizer

	profileIndex   driven.VectorIndex
	signatureIndex driven.VectorIndex
	embedder       driven.EmbeddingService

	queryTimeout time.Duration
	buildMu      sync.Mutex
}

// NewIndexService creates a new index service.
// The vectors, signatureIndex and embedder parameters are optional (can be nil).
// The signature index is disabled unless both it and the embedder are set.
func NewIndexService(
	profiles driven.ProfileStore,
	vectors driven.VectorStore,
	vectorizer *Vectorizer,
	profileIndex driven.VectorIndex,
	signatureIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
	opts IndexOptions,
) *IndexService {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	return &IndexService{
		profiles:       profiles,
		vectors:        vectors,
		vectorizer:     vectorizer,
		profileIndex:   profileIndex,
		signatureIndex: signatureIndex,
		embedder:       embedder,
		queryTimeout:   opts.QueryTimeout,
	}
}

func (s *IndexService) signaturesEnabled() bool {
	return s.signatureIndex != nil && s.embedder != nil
}

// Status reports both indexes.
func (s *IndexService) Status(_ context.Context) []domain.IndexStatus {
	out := make([]domain.IndexStatus, 0, 2)
	if s.profileIndex != nil {
		out = append(out, s.profileIndex.Status())
	} else {
		out = append(out, domain.IndexStatus{
			Name: ProfileIndexName, State: domain.IndexDisabled, Reason: "no index directory configured",
		})
	}
	if s.signaturesEnabled() {
		out = append(out, s.signatureIndex.Status())
	} else {
		out = append(out, domain.IndexStatus{
			Name: SignatureIndexName, State: domain.IndexDisabled, Reason: "no embedding provider configured",
		})
	}
	return out
}

// EnsureBuilt loads each enabled index, building it when missing or corrupt.
func (s *IndexService) EnsureBuilt(ctx context.Context) error {
	logger.Section("Index: ensure built")
	if s.profileIndex != nil {
		if err := s.ensure(ctx, s.profileIndex, s.buildProfileIndex); err != nil {
			return err
		}
	}
	if s.signaturesEnabled() {
		if err := s.ensure(ctx, s.signatureIndex, s.buildSignatureIndex); err != nil {
			return err
		}
	}
	return nil
}

func (s *IndexService) ensure(
	ctx context.Context, idx driven.VectorIndex, build func(context.Context, []domain.EntityProfile) error,
) error {
	err := idx.Load(ctx)
	switch {
	case err == nil:
		logger.Debug("Index %s loaded", idx.Name())
		return nil
	case errors.Is(err, domain.ErrVectorIndexUnavailable), errors.Is(err, domain.ErrIndexCorrupt):
		logger.Info("Index %s needs rebuild: %v", idx.Name(), err)
	default:
		return fmt.Errorf("loading index %s: %w", idx.Name(), err)
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return build(ctx, profiles)
}

// Rebuild rebuilds every enabled index from the profile store.
func (s *IndexService) Rebuild(ctx context.Context) error {
	logger.Section("Index: rebuild")
	if s.profileIndex == nil {
		return fmt.Errorf("profile index: %w", domain.ErrVectorIndexUnavailable)
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if err := s.buildProfileIndex(ctx, profiles); err != nil {
		return err
	}
	if s.signaturesEnabled() {
		if err := s.buildSignatureIndex(ctx, profiles); err != nil {
			return err
		}
	}
	return nil
}

func (s *IndexService) buildProfileIndex(ctx context.Context, profiles []domain.EntityProfile) error {
	manifest := s.vectorizer.Manifest()
	entries := make([]driven.IndexEntry, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		vec, err := s.profileVector(ctx, p)
		if err != nil {
			return err
		}
		entries = append(entries, driven.IndexEntry{
			EntityID: p.EntityID,
			Detail:   p.Signature(manifest),
			Vector:   vec.Float32(),
		})
	}
	if err := s.profileIndex.Build(ctx, entries, manifest.Version()); err != nil {
		return fmt.Errorf("building index %s: %w", s.profileIndex.Name(), err)
	}
	logger.Info("Index %s built with %d entries", s.profileIndex.Name(), len(entries))
	return nil
}

// profileVector reads the stored vector, re-vectorizing when it is missing
// or was built with another manifest version.
func (s *IndexService) profileVector(ctx context.Context, p *domain.EntityProfile) (domain.Vector, error) {
	version := s.vectorizer.Manifest().Version()
	if s.vectors == nil {
		return s.vectorizer.Vectorize(p), nil
	}
	if p.VectorPath != "" {
		vec, err := s.vectors.Read(ctx, p.VectorPath, version)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, domain.ErrManifestMismatch) && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("reading vector for %s: %w", p.EntityID, err)
		}
		logger.Warn("Re-vectorizing %s: %v", p.EntityID, err)
	}
	vec := s.vectorizer.Vectorize(p)
	path, err := s.vectors.Write(ctx, p.EntityID, uuid.NewString(), version, vec)
	if err != nil {
		return nil, fmt.Errorf("writing vector for %s: %w", p.EntityID, err)
	}
	if err := s.profiles.SetVectorPath(ctx, p.EntityID, path, version); err != nil {
		if rmErr := s.vectors.Remove(ctx, path); rmErr != nil {
			logger.Warn("Removing unrecorded vector %s: %v", path, rmErr)
		}
		return nil, fmt.Errorf("recording vector path for %s: %w", p.EntityID, err)
	}
	p.VectorPath = path
	return vec, nil
}

func (s *IndexService) buildSignatureIndex(ctx context.Context, profiles []domain.EntityProfile) error {
	manifest := s.vectorizer.Manifest()
	texts := make([]string, len(profiles))
	for i := range profiles {
		texts[i] = profiles[i].Signature(manifest)
	}
	var embeddings [][]float32
	if len(texts) > 0 {
		var err error
		embeddings, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding signatures: %w", err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding returned %d vectors for %d signatures", len(embeddings), len(texts))
		}
	}
	entries := make([]driven.IndexEntry, len(profiles))
	for i := range profiles {
		entries[i] = driven.IndexEntry{EntityID: profiles[i].EntityID, Detail: texts[i], Vector: embeddings[i]}
	}
	if err := s.signatureIndex.Build(ctx, entries, s.embedder.ModelName()); err != nil {
		return fmt.Errorf("building index %s: %w", s.signatureIndex.Name(), err)
	}
	logger.Info("Index %s built with %d entries", s.signatureIndex.Name(), len(entries))
	return nil
}

// QueryText embeds text and searches the signature index within the query timeout.
func (s *IndexService) QueryText(ctx context.Context, text string, k int) ([]domain.RankedEntity, error) {
	logger.Section("Index: text query")
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.signatureIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.loaded(ctx, s.signatureIndex); err != nil {
		return nil, err
	}
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	hits, err := s.signatureIndex.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.signatureIndex.Name(), err)
	}
	return toRanked(hits, "", k), nil
}

// QueryEntity searches the profile index with an entity's vector, excluding the entity.
// A missing or corrupt profile index is built on first use.
func (s *IndexService) QueryEntity(ctx context.Context, entityID string, k int) ([]domain.RankedEntity, error) {
	if s.profileIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	p, err := s.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", entityID, err)
	}
	if s.profileIndex.Status().State != domain.IndexReady {
		if err := s.ensure(ctx, s.profileIndex, s.buildProfileIndex); err != nil {
			return nil, fmt.Errorf("index %s: %w", s.profileIndex.Name(), err)
		}
	}
	query := s.vectorizer.Vectorize(p).Float32()
	hits, err := s.profileIndex.Search(ctx, query, k+1)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.profileIndex.Name(), err)
	}
	return toRanked(hits, entityID, k), nil
}

func (s *IndexService) loaded(ctx context.Context, idx driven.VectorIndex) error {
	if idx.Status().State == domain.IndexReady {
		return nil
	}
	if err := idx.Load(ctx); err != nil {
		return fmt.Errorf("index %s: %w", idx.Name(), err)
	}
	return nil
}

func toRanked(hits []driven.IndexHit, exclude string, k int) []domain.RankedEntity {
	out := make([]domain.RankedEntity, 0, len(hits))
	for _, h := range hits {
		if h.EntityID == exclude {
			continue
		}
		out = append(out, domain.RankedEntity{EntityID: h.EntityID, Similarity: h.Similarity, Detail: h.Detail})
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// CleanupOrphans deletes vector files that no profile row references.
func (s *IndexService) CleanupOrphans(ctx context.Context) (*domain.CleanupReport, error) {
	logger.Section("Index: orphan cleanup")
	report := &domain.CleanupReport{Removed: []string{}}
	if s.vectors == nil {
		return report, nil
	}
	referenced, err := s.profiles.ReferencedVectorPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing referenced vectors: %w", err)
	}
	keep := make(map[string]bool, len(referenced))
	for _, p := range referenced {
		keep[p] = true
	}
	onDisk, err := s.vectors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vector files: %w", err)
	}
	for _, path := range onDisk {
		if keep[path] {
			report.Kept++
			continue
		}
		if err := s.vectors.Remove(ctx, path); err != nil {
			return report, fmt.Errorf("removing %s: %w", path, err)
		}
		logger.Debug("Removed orphan %s", path)
		report.Removed = append(report.Removed, path)
	}
	return report, nil
}
