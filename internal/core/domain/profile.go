package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TopicCount is a topic with the number of records that carry it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// EntityProfile is the consolidated view of one entity's records.
// Profiles are recomputed wholesale and replaced, never patched.
type EntityProfile struct {
	EntityID    string
	RecordCount int

	// Judicial holds per-metric means, per-key map means and modal labels.
	Judicial JudicialLayer
	// CategoricalFrequency counts each observed value per categorical field.
	CategoricalFrequency map[string]map[string]int
	// Cognition holds per-key means of the cognitive layer.
	Cognition CognitiveLayer

	RecurringTopics []TopicCount
	Confidence      float64
	ConfidenceModel string

	// Line summary pushed back by the line analyzer.
	ConsolidatedLines map[string]float64
	InconsistentLines []string
	EmergingLines     []string

	ManifestVersion string
	VectorPath      string
	RunID           string
	UpdatedAt       time.Time
}

// Score implements ScoreSource.
func (p *EntityProfile) Score(key string) (float64, bool) {
	return lookupScore(p.Cognition, &p.Judicial, key)
}

// ApplyLineSummary replaces the line summary fields.
func (p *EntityProfile) ApplyLineSummary(s LineSummary) {
	p.ConsolidatedLines = s.Consolidated
	p.InconsistentLines = s.Inconsistent
	p.EmergingLines = s.Emerging
}

// Signature renders the profile as a canonical line of text.
// The signature index embeds it, so the output is deterministic:
// fields appear in manifest order, and only present values are written.
func (p *EntityProfile) Signature(m *FeatureManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "entity %s", p.EntityID)
	for _, name := range JudicialLabels {
		if l := p.Judicial.Label(name); l.Valid() {
			fmt.Fprintf(&b, "; %s %s", name, l)
		}
	}
	for _, key := range m.keys {
		if v, ok := p.Score(key); ok && v != 0 {
			fmt.Fprintf(&b, "; %s %.3f", strings.TrimPrefix(key, PrefixCognition+"."), v)
		}
	}
	if tests := p.Judicial.AppliedTests; len(tests) > 0 {
		fmt.Fprintf(&b, "; tests %s", strings.Join(topKeys(tests, 5), ", "))
	}
	if len(p.RecurringTopics) > 0 {
		topics := make([]string, 0, len(p.RecurringTopics))
		for _, tc := range p.RecurringTopics {
			topics = append(topics, tc.Topic)
		}
		fmt.Fprintf(&b, "; topics %s", strings.Join(topics, ", "))
	}
	return b.String()
}

// topKeys returns up to n keys with the highest scores, ties by key.
func topKeys(m ScoreMap, n int) []string {
	keys := m.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
