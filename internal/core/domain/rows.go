package domain

import "time"

// Line classifications by consistency band.
const (
	LineConsolidated = "consolidated"
	LineEmerging     = "emerging"
	LineInconsistent = "inconsistent"
)

// ProfileRow is the flat relational shape of a profile, as consumed by
// report generators. Judicial fields are inlined at the top level.
type ProfileRow struct {
	EntityID    string `json:"entity_id"`
	RecordCount int    `json:"record_count"`
	JudicialLayer
	CategoricalFrequency map[string]map[string]int `json:"categorical_frequency"`
	Cognition            CognitiveLayer            `json:"cognition"`
	RecurringTopics      []TopicCount              `json:"recurring_topics"`
	Confidence           float64                   `json:"confidence"`
	ConfidenceModel      string                    `json:"confidence_model"`
	ConsolidatedLines    map[string]float64        `json:"consolidated_lines"`
	InconsistentLines    []string                  `json:"inconsistent_lines"`
	EmergingLines        []string                  `json:"emerging_lines"`
	ManifestVersion      string                    `json:"manifest_version"`
	VectorPath           string                    `json:"vector_path,omitempty"`
	RunID                string                    `json:"run_id"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}

// Row flattens the profile. Nil collections become empty ones.
func (p *EntityProfile) Row() ProfileRow {
	row := ProfileRow{
		EntityID:             p.EntityID,
		RecordCount:          p.RecordCount,
		JudicialLayer:        p.Judicial,
		CategoricalFrequency: p.CategoricalFrequency,
		Cognition:            p.Cognition,
		RecurringTopics:      p.RecurringTopics,
		Confidence:           p.Confidence,
		ConfidenceModel:      p.ConfidenceModel,
		ConsolidatedLines:    p.ConsolidatedLines,
		InconsistentLines:    p.InconsistentLines,
		EmergingLines:        p.EmergingLines,
		ManifestVersion:      p.ManifestVersion,
		VectorPath:           p.VectorPath,
		RunID:                p.RunID,
		UpdatedAt:            p.UpdatedAt,
	}
	if row.CategoricalFrequency == nil {
		row.CategoricalFrequency = map[string]map[string]int{}
	}
	if row.RecurringTopics == nil {
		row.RecurringTopics = []TopicCount{}
	}
	if row.ConsolidatedLines == nil {
		row.ConsolidatedLines = map[string]float64{}
	}
	if row.InconsistentLines == nil {
		row.InconsistentLines = []string{}
	}
	if row.EmergingLines == nil {
		row.EmergingLines = []string{}
	}
	return row
}

// LineRow is the flat relational shape of a jurisprudential line.
type LineRow struct {
	ID                      string             `json:"id"`
	EntityID                string             `json:"entity_id"`
	Topic                   string             `json:"topic"`
	Classification          string             `json:"classification"`
	RecordIDs               []string           `json:"record_ids"`
	RecordCount             int                `json:"record_count"`
	FirstDate               string             `json:"first_date,omitempty"`
	LastDate                string             `json:"last_date,omitempty"`
	DominantOutcome         string             `json:"dominant_outcome"`
	DominantInterpretation  string             `json:"dominant_interpretation"`
	Criterion               string             `json:"criterion"`
	OutcomeAgreement        *float64           `json:"outcome_agreement"`
	InterpretationAgreement *float64           `json:"interpretation_agreement"`
	ConsistencyScore        float64            `json:"consistency_score"`
	ConsistentCount         int                `json:"consistent_count"`
	InconsistentCount       int                `json:"inconsistent_count"`
	RecurringTests          []string           `json:"recurring_tests"`
	ParadigmaticCaseIDs     []string           `json:"paradigmatic_case_ids"`
	Exceptions              []LineException    `json:"exceptions"`
	PredictiveFactors       []PredictiveFactor `json:"predictive_factors"`
	Confidence              float64            `json:"confidence"`
	AnalyzedAt              time.Time          `json:"analyzed_at"`
}

// Classification names the consistency band of the line.
func (l *JurisprudentialLine) Classification() string {
	switch {
	case l.Consolidated():
		return LineConsolidated
	case l.Inconsistent():
		return LineInconsistent
	default:
		return LineEmerging
	}
}

// Row flattens the line. Dates are rendered as calendar dates.
func (l *JurisprudentialLine) Row() LineRow {
	row := LineRow{
		ID:                      l.ID,
		EntityID:                l.EntityID,
		Topic:                   l.Topic,
		Classification:          l.Classification(),
		RecordIDs:               orEmpty(l.RecordIDs),
		RecordCount:             l.RecordCount(),
		DominantOutcome:         l.DominantOutcome,
		DominantInterpretation:  l.DominantInterpretation,
		Criterion:               l.Criterion,
		OutcomeAgreement:        l.OutcomeAgreement,
		InterpretationAgreement: l.InterpretationAgreement,
		ConsistencyScore:        l.ConsistencyScore,
		ConsistentCount:         l.ConsistentCount,
		InconsistentCount:       l.InconsistentCount,
		RecurringTests:          orEmpty(l.RecurringTests),
		ParadigmaticCaseIDs:     orEmpty(l.ParadigmaticCaseIDs),
		Exceptions:              orEmpty(l.Exceptions),
		PredictiveFactors:       orEmpty(l.PredictiveFactors),
		Confidence:              l.Confidence,
		AnalyzedAt:              l.AnalyzedAt,
	}
	if !l.FirstDate.IsZero() {
		row.FirstDate = l.FirstDate.Format(DateLayout)
	}
	if !l.LastDate.IsZero() {
		row.LastDate = l.LastDate.Format(DateLayout)
	}
	return row
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
