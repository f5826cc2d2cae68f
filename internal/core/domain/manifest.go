package domain

import (
	"fmt"
	"strings"
)

// Feature key prefixes.
const (
	PrefixCognition = "cognition"
	PrefixJudicial  = "judicial"
)

// DefaultManifestVersion identifies the built-in feature manifest.
const DefaultManifestVersion = "v1"

// FeatureManifest is the canonical, versioned, ordered list of vector dimensions.
// A key always maps to the same index for a given version. Manifests are
// immutable after construction; accessors hand out copies.
type FeatureManifest struct {
	version string
	keys    []string
	index   map[string]int
}

// NewManifest builds a manifest, rejecting empty versions, empty keys and duplicates.
func NewManifest(version string, keys []string) (*FeatureManifest, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("manifest version is empty: %w", ErrInvalidInput)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("manifest %s has no keys: %w", version, ErrInvalidInput)
	}
	m := &FeatureManifest{
		version: version,
		keys:    make([]string, len(keys)),
		index:   make(map[string]int, len(keys)),
	}
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("manifest %s: empty key at %d: %w", version, i, ErrInvalidInput)
		}
		if _, dup := m.index[k]; dup {
			return nil, fmt.Errorf("manifest %s: duplicate key %q: %w", version, k, ErrInvalidInput)
		}
		m.keys[i] = k
		m.index[k] = i
	}
	return m, nil
}

// Version returns the manifest version tag.
func (m *FeatureManifest) Version() string { return m.version }

// Len returns the number of dimensions.
func (m *FeatureManifest) Len() int { return len(m.keys) }

// Keys returns a copy of the ordered key list.
func (m *FeatureManifest) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Key returns the key at position i.
func (m *FeatureManifest) Key(i int) string { return m.keys[i] }

// IndexOf returns the position of a key.
func (m *FeatureManifest) IndexOf(key string) (int, bool) {
	i, ok := m.index[key]
	return i, ok
}

// Resolve maps a pattern name to manifest positions. A full key matches
// itself; otherwise the name is compared against each key's leaf
// (the segment after the last dot), and every matching key is returned
// in declaration order.
func (m *FeatureManifest) Resolve(name string) []int {
	if i, ok := m.index[name]; ok {
		return []int{i}
	}
	var out []int
	for i, k := range m.keys {
		if LeafName(k) == name {
			out = append(out, i)
		}
	}
	return out
}

// Section returns the section a key belongs to: a cognitive section name
// for cognition keys, or "judicial".
func Section(key string) string {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) >= 3 && parts[0] == PrefixCognition:
		return parts[1]
	case len(parts) >= 2 && parts[0] == PrefixJudicial:
		return PrefixJudicial
	default:
		return ""
	}
}

// LeafName returns the last dot-separated segment of a key.
func LeafName(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}

// defaultKeys mirrors the extractor's score layout: 14 reasoning modes,
// 7 epistemic modalities, 3 rhetorical appeals, 8 literary styles,
// 8 cognitive markers and the 5 scalar judicial metrics.
var defaultKeys = []string{
	"cognition.reasoning.deductive",
	"cognition.reasoning.inductive",
	"cognition.reasoning.abductive",
	"cognition.reasoning.analogical",
	"cognition.reasoning.teleological",
	"cognition.reasoning.systemic",
	"cognition.reasoning.authoritative",
	"cognition.reasoning.a_contrario",
	"cognition.reasoning.consequentialist",
	"cognition.reasoning.dialectical",
	"cognition.reasoning.hermeneutic",
	"cognition.reasoning.historical",
	"cognition.reasoning.economic_analytic",
	"cognition.reasoning.reductio_ad_absurdum",

	"cognition.epistemic_modality.apodictic",
	"cognition.epistemic_modality.dialectical",
	"cognition.epistemic_modality.rhetorical",
	"cognition.epistemic_modality.sophistic",
	"cognition.epistemic_modality.certainty",
	"cognition.epistemic_modality.explored_uncertainty",
	"cognition.epistemic_modality.hedging",

	"cognition.rhetoric.ethos",
	"cognition.rhetoric.pathos",
	"cognition.rhetoric.logos",

	"cognition.literary_style.technical_legal",
	"cognition.literary_style.essayistic",
	"cognition.literary_style.narrative",
	"cognition.literary_style.baroque",
	"cognition.literary_style.minimalist",
	"cognition.literary_style.aphoristic",
	"cognition.literary_style.impersonal_bureaucratic",
	"cognition.literary_style.critical_dialectical",

	"cognition.markers.abstraction_level",
	"cognition.markers.syntactic_complexity",
	"cognition.markers.interdisciplinarity",
	"cognition.markers.empiricism",
	"cognition.markers.dogmatism",
	"cognition.markers.creativity",
	"cognition.markers.case_law_usage",
	"cognition.markers.global_coherence",

	"judicial.activism",
	"judicial.formalism",
	"judicial.rights_protection",
	"judicial.legislative_deference",
	"judicial.executive_deference",
}

// DefaultManifest returns the built-in v1 manifest.
func DefaultManifest() *FeatureManifest {
	m, err := NewManifest(DefaultManifestVersion, defaultKeys)
	if err != nil {
		panic(err)
	}
	return m
}

// ScoreSource resolves a feature key to a numeric value.
// Records and profiles both implement it so one vectorizer serves both.
type ScoreSource interface {
	Score(key string) (float64, bool)
}

// lookupScore resolves a dotted feature key against the two score layers.
func lookupScore(c CognitiveLayer, j *JudicialLayer, key string) (float64, bool) {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 3 && parts[0] == PrefixCognition:
		section, ok := c.Section(parts[1])
		if !ok {
			return 0, false
		}
		v, ok := section[parts[2]]
		return v, ok
	case len(parts) == 2 && parts[0] == PrefixJudicial:
		if j == nil {
			return 0, false
		}
		m, ok := j.Metric(parts[1])
		if !ok {
			return 0, false
		}
		return m.Get()
	case len(parts) == 3 && parts[0] == PrefixJudicial:
		if j == nil {
			return 0, false
		}
		v, ok := j.Map(parts[1])[parts[2]]
		return v, ok
	default:
		return 0, false
	}
}
