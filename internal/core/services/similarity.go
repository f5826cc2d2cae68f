package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure SimilarityService implements the interface.
var _ driving.SimilarityService = (*SimilarityService)(nil)

// DefaultDifferentiators is the number of differentiators returned by Compare when n <= 0.
const DefaultDifferentiators = 3

// SimilarityService compares stored profiles in manifest space.
type SimilarityService struct {
	profiles   driven.ProfileStore
	vectorizer *Vectorizer
}

// NewSimilarityService creates a new similarity service.
func NewSimilarityService(profiles driven.ProfileStore, vectorizer *Vectorizer) *SimilarityService {
	return &SimilarityService{profiles: profiles, vectorizer: vectorizer}
}

// Compare loads two profiles and compares their vectors.
func (s *SimilarityService) Compare(
	ctx context.Context, entityA, entityB string, n int,
) (*domain.SimilarityResult, error) {
	a, err := s.profiles.Get(ctx, entityA)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", entityA, err)
	}
	b, err := s.profiles.Get(ctx, entityB)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", entityB, err)
	}
	return s.CompareProfiles(a, b, n), nil
}

// CompareProfiles compares two in-memory profiles.
func (s *SimilarityService) CompareProfiles(a, b *domain.EntityProfile, n int) *domain.SimilarityResult {
	if n <= 0 {
		n = DefaultDifferentiators
	}
	va, vb := s.vectorizer.Vectorize(a), s.vectorizer.Vectorize(b)
	cos := va.Cosine(vb)
	return &domain.SimilarityResult{
		EntityA:           a.EntityID,
		EntityB:           b.EntityID,
		CosineSimilarity:  cos,
		EuclideanDistance: va.Euclidean(vb),
		Affinity:          domain.AffinityFor(cos),
		Differentiators:   TopDifferentiators(s.vectorizer.Manifest(), va, vb, n),
		Sections:          SectionSimilarities(s.vectorizer.Manifest(), va, vb),
		ManifestVersion:   s.vectorizer.Manifest().Version(),
	}
}

// TopDifferentiators returns the n dimensions with the largest absolute
// difference. Ties keep manifest declaration order.
func TopDifferentiators(m *domain.FeatureManifest, a, b domain.Vector, n int) []domain.Differentiator {
	diffs := make([]domain.Differentiator, m.Len())
	for i := range diffs {
		var va, vb float64
		if i < len(a) {
			va = a[i]
		}
		if i < len(b) {
			vb = b[i]
		}
		diffs[i] = domain.Differentiator{Key: m.Key(i), ValueA: va, ValueB: vb, Delta: va - vb}
	}
	sort.SliceStable(diffs, func(i, j int) bool {
		return math.Abs(diffs[i].Delta) > math.Abs(diffs[j].Delta)
	})
	if n < len(diffs) {
		diffs = diffs[:n]
	}
	return diffs
}

// SectionSimilarities returns the cosine similarity per manifest section,
// in the order sections first appear in the manifest.
func SectionSimilarities(m *domain.FeatureManifest, a, b domain.Vector) []domain.SectionSimilarity {
	var order []string
	positions := map[string][]int{}
	for i, k := range m.Keys() {
		sec := domain.Section(k)
		if sec == "" {
			continue
		}
		if _, ok := positions[sec]; !ok {
			order = append(order, sec)
		}
		positions[sec] = append(positions[sec], i)
	}
	out := make([]domain.SectionSimilarity, 0, len(order))
	for _, sec := range order {
		idx := positions[sec]
		out = append(out, domain.SectionSimilarity{
			Section:    sec,
			Similarity: a.Subset(idx).Cosine(b.Subset(idx)),
		})
	}
	return out
}

// Rank orders every other profile by cosine similarity to entityID,
// descending, ties by entity id.
func (s *SimilarityService) Rank(ctx context.Context, entityID string, limit int) ([]domain.RankedEntity, error) {
	target, err := s.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", entityID, err)
	}
	library, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return s.RankCorpus(target, library, limit), nil
}

// RankCorpus ranks library against target, excluding target itself.
func (s *SimilarityService) RankCorpus(
	target *domain.EntityProfile, library []domain.EntityProfile, limit int,
) []domain.RankedEntity {
	tv := s.vectorizer.Vectorize(target)
	out := make([]domain.RankedEntity, 0, len(library))
	for i := range library {
		p := &library[i]
		if p.EntityID == target.EntityID {
			continue
		}
		out = append(out, domain.RankedEntity{
			EntityID:   p.EntityID,
			Similarity: tv.Cosine(s.vectorizer.Vectorize(p)),
		})
	}
	sortRanked(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortRanked(r []domain.RankedEntity) {
	sort.Slice(r, func(i, j int) bool {
		if r[i].Similarity != r[j].Similarity {
			return r[i].Similarity > r[j].Similarity
		}
		return r[i].EntityID < r[j].EntityID
	})
}

// PatternSearch scores every profile against a partial pattern.
// Each pattern name resolves to manifest positions (full key or leaf name);
// the cosine is computed over those positions only.
func (s *SimilarityService) PatternSearch(
	ctx context.Context, pattern map[string]float64, threshold float64,
) ([]domain.PatternMatch, error) {
	logger.Section("Pattern search")
	m := s.vectorizer.Manifest()

	names := make([]string, 0, len(pattern))
	for name := range pattern {
		names = append(names, name)
	}
	sort.Strings(names)

	var idx []int
	var target domain.Vector
	var dims []string
	seen := map[int]bool{}
	for _, name := range names {
		positions := m.Resolve(strings.TrimSpace(name))
		if len(positions) == 0 {
			logger.Warn("pattern dimension %q matches no feature key", name)
			continue
		}
		for _, p := range positions {
			if seen[p] {
				continue
			}
			seen[p] = true
			idx = append(idx, p)
			target = append(target, pattern[name])
			dims = append(dims, m.Key(p))
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("pattern names no known dimension: %w", domain.ErrInvalidInput)
	}
	logger.Debug("Pattern resolved to %d dimensions", len(idx))

	library, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	var out []domain.PatternMatch
	for i := range library {
		sim := target.Cosine(s.vectorizer.Vectorize(&library[i]).Subset(idx))
		if sim >= threshold {
			out = append(out, domain.PatternMatch{
				EntityID:   library[i].EntityID,
				Similarity: sim,
				Dimensions: dims,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

// Matrix computes the symmetric pairwise similarity matrix over all profiles.
// The diagonal is 1 for non-zero vectors and 0 for empty profiles.
func (s *SimilarityService) Matrix(ctx context.Context) (*domain.SimilarityMatrix, error) {
	library, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	sort.Slice(library, func(i, j int) bool { return library[i].EntityID < library[j].EntityID })

	vectors := make([]domain.Vector, len(library))
	ids := make([]string, len(library))
	for i := range library {
		vectors[i] = s.vectorizer.Vectorize(&library[i])
		ids[i] = library[i].EntityID
	}
	values := make([][]float64, len(library))
	for i := range values {
		values[i] = make([]float64, len(library))
	}
	for i := range vectors {
		values[i][i] = vectors[i].Cosine(vectors[i])
		for j := i + 1; j < len(vectors); j++ {
			c := vectors[i].Cosine(vectors[j])
			values[i][j], values[j][i] = c, c
		}
	}
	return &domain.SimilarityMatrix{
		EntityIDs:       ids,
		Values:          values,
		ManifestVersion: s.vectorizer.Manifest().Version(),
	}, nil
}
