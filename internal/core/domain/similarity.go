package domain

// Affinity is a coarse bucket of cosine similarity.
type Affinity string

// Affinity levels.
const (
	AffinityHigh   Affinity = "high"
	AffinityMedium Affinity = "medium"
	AffinityLow    Affinity = "low"
)

// AffinityFor buckets a similarity: > 0.8 high, > 0.6 medium, otherwise low.
func AffinityFor(similarity float64) Affinity {
	switch {
	case similarity > 0.8:
		return AffinityHigh
	case similarity > 0.6:
		return AffinityMedium
	default:
		return AffinityLow
	}
}

// Differentiator is a dimension where two profiles diverge.
type Differentiator struct {
	Key    string  `json:"key"`
	ValueA float64 `json:"value_a"`
	ValueB float64 `json:"value_b"`
	Delta  float64 `json:"delta"`
}

// SectionSimilarity is the cosine similarity restricted to one manifest section.
type SectionSimilarity struct {
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
}

// SimilarityResult compares two profiles. It is derived, never stored as authoritative.
type SimilarityResult struct {
	EntityA           string              `json:"entity_a"`
	EntityB           string              `json:"entity_b"`
	CosineSimilarity  float64             `json:"cosine_similarity"`
	EuclideanDistance float64             `json:"euclidean_distance"`
	Affinity          Affinity            `json:"affinity"`
	Differentiators   []Differentiator    `json:"differentiators"`
	Sections          []SectionSimilarity `json:"sections"`
	ManifestVersion   string              `json:"manifest_version"`
}

// RankedEntity is one entry of a similarity ranking or index query.
type RankedEntity struct {
	EntityID   string  `json:"entity_id"`
	Similarity float64 `json:"similarity"`
	// Detail carries index metadata such as the profile signature.
	Detail string `json:"detail,omitempty"`
}

// PatternMatch is an entity matching a partial feature pattern.
type PatternMatch struct {
	EntityID   string   `json:"entity_id"`
	Similarity float64  `json:"similarity"`
	Dimensions []string `json:"dimensions"`
}

// SimilarityMatrix holds pairwise cosine similarities for a set of entities.
type SimilarityMatrix struct {
	EntityIDs       []string    `json:"entity_ids"`
	Values          [][]float64 `json:"values"`
	ManifestVersion string      `json:"manifest_version"`
}
