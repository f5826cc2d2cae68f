package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Metric is an optional numeric score.
// Decoding is lenient: any JSON value that is not a finite number
// (string, object, null, NaN) yields an absent metric instead of an error.
type Metric struct {
	Value float64
	Valid bool
}

// Some returns a present metric holding v.
func Some(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// Get returns the value and whether it is present.
func (m Metric) Get() (float64, bool) {
	return m.Value, m.Valid
}

// MarshalJSON encodes an absent metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte(jsonNull), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON implements lenient decoding.
func (m *Metric) UnmarshalJSON(data []byte) error {
	*m = Metric{}
	v, ok := decodeNumber(data)
	if ok {
		*m = Some(v)
	}
	return nil
}

// Label is an optional categorical value. Non-string JSON decodes as absent.
type Label string

// Valid reports whether the label carries a value.
func (l Label) Valid() bool {
	return strings.TrimSpace(string(l)) != ""
}

// UnmarshalJSON implements lenient decoding.
func (l *Label) UnmarshalJSON(data []byte) error {
	*l = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Label(strings.TrimSpace(s))
	}
	return nil
}

// ScoreMap is a nested per-key score dictionary (per-test, per-right, ...).
// Only finite numeric entries survive decoding; wrong-typed entries are dropped.
type ScoreMap map[string]float64

// UnmarshalJSON implements lenient decoding.
func (s *ScoreMap) UnmarshalJSON(data []byte) error {
	*s = nil
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(ScoreMap, len(raw))
	for k, v := range raw {
		if f, ok := decodeNumber(v); ok {
			out[k] = f
		}
	}
	*s = out
	return nil
}

// Keys returns the map keys sorted lexically.
func (s ScoreMap) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountAbove returns how many entries score strictly above threshold.
func (s ScoreMap) CountAbove(threshold float64) int {
	n := 0
	for _, v := range s {
		if v > threshold {
			n++
		}
	}
	return n
}

// Cognitive layer section names, as used in feature keys.
const (
	SectionReasoning         = "reasoning"
	SectionEpistemicModality = "epistemic_modality"
	SectionRhetoric          = "rhetoric"
	SectionLiteraryStyle     = "literary_style"
	SectionMarkers           = "markers"
)

// CognitiveLayer holds the rhetorical/argumentative scores of a document.
type CognitiveLayer struct {
	Reasoning         ScoreMap `json:"reasoning,omitempty"`
	EpistemicModality ScoreMap `json:"epistemic_modality,omitempty"`
	Rhetoric          ScoreMap `json:"rhetoric,omitempty"`
	LiteraryStyle     ScoreMap `json:"literary_style,omitempty"`
	Markers           ScoreMap `json:"markers,omitempty"`
}

// Section returns the score map for a named section.
func (c CognitiveLayer) Section(name string) (ScoreMap, bool) {
	switch name {
	case SectionReasoning:
		return c.Reasoning, true
	case SectionEpistemicModality:
		return c.EpistemicModality, true
	case SectionRhetoric:
		return c.Rhetoric, true
	case SectionLiteraryStyle:
		return c.LiteraryStyle, true
	case SectionMarkers:
		return c.Markers, true
	default:
		return nil, false
	}
}

// SetSection replaces the score map for a named section.
func (c *CognitiveLayer) SetSection(name string, m ScoreMap) {
	switch name {
	case SectionReasoning:
		c.Reasoning = m
	case SectionEpistemicModality:
		c.EpistemicModality = m
	case SectionRhetoric:
		c.Rhetoric = m
	case SectionLiteraryStyle:
		c.LiteraryStyle = m
	case SectionMarkers:
		c.Markers = m
	}
}

// CognitiveSections lists the cognitive sections in declaration order.
var CognitiveSections = []string{
	SectionReasoning,
	SectionEpistemicModality,
	SectionRhetoric,
	SectionLiteraryStyle,
	SectionMarkers,
}

// IsEmpty reports whether no section carries any score.
func (c CognitiveLayer) IsEmpty() bool {
	for _, name := range CognitiveSections {
		if m, _ := c.Section(name); len(m) > 0 {
			return false
		}
	}
	return true
}

// Judicial metric names, as used in feature keys and profile columns.
const (
	MetricActivism             = "activism"
	MetricFormalism            = "formalism"
	MetricRightsProtection     = "rights_protection"
	MetricLegislativeDeference = "legislative_deference"
	MetricExecutiveDeference   = "executive_deference"
)

// Judicial nested map names.
const (
	MapProtectedRights = "protected_rights"
	MapAppliedTests    = "applied_tests"
	MapInDubioPro      = "in_dubio_pro"
	MapBiases          = "biases"
	MapCitedSources    = "cited_sources"
)

// Judicial categorical field names.
const (
	FieldNormativeInterpretation = "normative_interpretation"
	FieldEvidenceStandard        = "evidence_standard"
	FieldDominantBias            = "dominant_bias"
)

// JudicialMetrics, JudicialMaps and JudicialLabels list the judicial fields in declaration order.
var (
	JudicialMetrics = []string{
		MetricActivism,
		MetricFormalism,
		MetricRightsProtection,
		MetricLegislativeDeference,
		MetricExecutiveDeference,
	}
	JudicialMaps = []string{
		MapProtectedRights,
		MapAppliedTests,
		MapInDubioPro,
		MapBiases,
		MapCitedSources,
	}
	JudicialLabels = []string{
		FieldNormativeInterpretation,
		FieldEvidenceStandard,
		FieldDominantBias,
	}
)

// JudicialLayer holds the judicial-analysis scores of a decision.
// Every field is optional; absence is tracked explicitly rather than zero-filled.
type JudicialLayer struct {
	Activism             Metric `json:"activism"`
	Formalism            Metric `json:"formalism"`
	RightsProtection     Metric `json:"rights_protection"`
	LegislativeDeference Metric `json:"legislative_deference"`
	ExecutiveDeference   Metric `json:"executive_deference"`

	ProtectedRights ScoreMap `json:"protected_rights,omitempty"`
	AppliedTests    ScoreMap `json:"applied_tests,omitempty"`
	InDubioPro      ScoreMap `json:"in_dubio_pro,omitempty"`
	Biases          ScoreMap `json:"biases,omitempty"`
	CitedSources    ScoreMap `json:"cited_sources,omitempty"`

	NormativeInterpretation Label `json:"normative_interpretation,omitempty"`
	EvidenceStandard        Label `json:"evidence_standard,omitempty"`
	DominantBias            Label `json:"dominant_bias,omitempty"`
}

// Metric returns a named numeric metric.
func (j *JudicialLayer) Metric(name string) (Metric, bool) {
	switch name {
	case MetricActivism:
		return j.Activism, true
	case MetricFormalism:
		return j.Formalism, true
	case MetricRightsProtection:
		return j.RightsProtection, true
	case MetricLegislativeDeference:
		return j.LegislativeDeference, true
	case MetricExecutiveDeference:
		return j.ExecutiveDeference, true
	default:
		return Metric{}, false
	}
}

// SetMetric replaces a named numeric metric.
func (j *JudicialLayer) SetMetric(name string, m Metric) {
	switch name {
	case MetricActivism:
		j.Activism = m
	case MetricFormalism:
		j.Formalism = m
	case MetricRightsProtection:
		j.RightsProtection = m
	case MetricLegislativeDeference:
		j.LegislativeDeference = m
	case MetricExecutiveDeference:
		j.ExecutiveDeference = m
	}
}

// Map returns a named nested score map.
func (j *JudicialLayer) Map(name string) ScoreMap {
	switch name {
	case MapProtectedRights:
		return j.ProtectedRights
	case MapAppliedTests:
		return j.AppliedTests
	case MapInDubioPro:
		return j.InDubioPro
	case MapBiases:
		return j.Biases
	case MapCitedSources:
		return j.CitedSources
	default:
		return nil
	}
}

// SetMap replaces a named nested score map.
func (j *JudicialLayer) SetMap(name string, m ScoreMap) {
	switch name {
	case MapProtectedRights:
		j.ProtectedRights = m
	case MapAppliedTests:
		j.AppliedTests = m
	case MapInDubioPro:
		j.InDubioPro = m
	case MapBiases:
		j.Biases = m
	case MapCitedSources:
		j.CitedSources = m
	}
}

// Label returns a named categorical field.
func (j *JudicialLayer) Label(name string) Label {
	switch name {
	case FieldNormativeInterpretation:
		return j.NormativeInterpretation
	case FieldEvidenceStandard:
		return j.EvidenceStandard
	case FieldDominantBias:
		return j.DominantBias
	default:
		return ""
	}
}

// SetLabel replaces a named categorical field.
func (j *JudicialLayer) SetLabel(name string, l Label) {
	switch name {
	case FieldNormativeInterpretation:
		j.NormativeInterpretation = l
	case FieldEvidenceStandard:
		j.EvidenceStandard = l
	case FieldDominantBias:
		j.DominantBias = l
	}
}

// HasData reports whether any judicial field is present.
func (j *JudicialLayer) HasData() bool {
	if j == nil {
		return false
	}
	for _, name := range JudicialMetrics {
		if m, _ := j.Metric(name); m.Valid {
			return true
		}
	}
	for _, name := range JudicialMaps {
		if len(j.Map(name)) > 0 {
			return true
		}
	}
	for _, name := range JudicialLabels {
		if j.Label(name).Valid() {
			return true
		}
	}
	return false
}

// decodeNumber accepts JSON numbers and numeric strings; anything else is rejected.
func decodeNumber(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte(jsonNull)) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, isFinite(f)
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && isFinite(f) {
			return f, true
		}
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

const jsonNull = "null"
