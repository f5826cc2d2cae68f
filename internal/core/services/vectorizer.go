package services

import (
	"math"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// Vectorizer flattens score sources into manifest-ordered vectors.
type Vectorizer struct {
	manifest *domain.FeatureManifest
}

// NewVectorizer creates a vectorizer bound to a manifest.
// A nil manifest selects domain.DefaultManifest.
func NewVectorizer(manifest *domain.FeatureManifest) *Vectorizer {
	if manifest == nil {
		manifest = domain.DefaultManifest()
	}
	return &Vectorizer{manifest: manifest}
}

// Manifest returns the bound manifest.
func (v *Vectorizer) Manifest() *domain.FeatureManifest {
	return v.manifest
}

// Vectorize resolves every manifest key against src.
// Absent or non-finite values become 0.0. A nil source yields the zero vector.
func (v *Vectorizer) Vectorize(src domain.ScoreSource) domain.Vector {
	out := make(domain.Vector, v.manifest.Len())
	if src == nil {
		return out
	}
	for i := range out {
		val, ok := src.Score(v.manifest.Key(i))
		if !ok || math.IsNaN(val) || math.IsInf(val, 0) {
			continue
		}
		out[i] = val
	}
	return out
}
