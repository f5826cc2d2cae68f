package domain

import (
	"sort"
	"strings"
	"time"
)

// Line analysis thresholds.
const (
	// ConsolidatedThreshold is the consistency at or above which a line is consolidated.
	ConsolidatedThreshold = 0.7
	// InconsistentThreshold is the consistency below which a line is inconsistent.
	InconsistentThreshold = 0.5
	// RecurringTestThreshold is the per-record score a test must exceed to count as applied.
	RecurringTestThreshold = 0.3
	// NeutralRatio stands in for an agreement ratio with no observations.
	NeutralRatio = 0.5
	// DefaultMinGroupSize is the smallest topic group analysed.
	DefaultMinGroupSize = 2
	// UnclassifiedTopic groups records without a topic.
	UnclassifiedTopic = "unclassified"
)

// MissingRatioPolicy decides how an agreement ratio with zero observations enters the consistency score.
type MissingRatioPolicy string

const (
	// MissingRatioNeutral substitutes NeutralRatio.
	MissingRatioNeutral MissingRatioPolicy = "neutral"
	// MissingRatioExclude averages only the ratios that were observed.
	MissingRatioExclude MissingRatioPolicy = "exclude"
)

// ParseMissingRatioPolicy resolves a configured policy name; unknown names fall back to neutral.
func ParseMissingRatioPolicy(s string) MissingRatioPolicy {
	if MissingRatioPolicy(strings.ToLower(strings.TrimSpace(s))) == MissingRatioExclude {
		return MissingRatioExclude
	}
	return MissingRatioNeutral
}

// NormalizeTopic lowercases and trims a topic; an empty topic becomes UnclassifiedTopic.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "" {
		return UnclassifiedTopic
	}
	return t
}

// LineException is a record whose outcome departs from the line's dominant outcome.
type LineException struct {
	DocumentID string `json:"document_id"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason"`
}

// PredictiveFactor is a weighted feature correlated with the entity's decisions on a topic.
type PredictiveFactor struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// JurisprudentialLine is the consistency analysis of one entity on one topic.
type JurisprudentialLine struct {
	ID        string
	EntityID  string
	Topic     string
	RecordIDs []string

	FirstDate time.Time
	LastDate  time.Time

	DominantOutcome        string
	DominantInterpretation string
	Criterion              string

	// Agreement ratios; nil when the field had no observations in the group.
	OutcomeAgreement        *float64
	InterpretationAgreement *float64
	ConsistencyScore        float64
	ConsistentCount         int
	InconsistentCount       int

	RecurringTests      []string
	ParadigmaticCaseIDs []string
	Exceptions          []LineException
	PredictiveFactors   []PredictiveFactor
	Confidence          float64
	AnalyzedAt          time.Time
}

// RecordCount returns the number of member records.
func (l *JurisprudentialLine) RecordCount() int {
	return len(l.RecordIDs)
}

// Consolidated reports whether the line is consistent enough to be relied on.
func (l *JurisprudentialLine) Consolidated() bool {
	return l.ConsistencyScore >= ConsolidatedThreshold
}

// Inconsistent reports whether the line is too inconsistent to be relied on.
func (l *JurisprudentialLine) Inconsistent() bool {
	return l.ConsistencyScore < InconsistentThreshold
}

// LineSummary is the per-entity projection of its lines stored on the profile.
type LineSummary struct {
	Consolidated map[string]float64
	Inconsistent []string
	// Emerging holds topics in the [0.5, 0.7) band.
	Emerging []string
}

// SummarizeLines buckets lines by consistency. Topic lists are sorted.
func SummarizeLines(lines []JurisprudentialLine) LineSummary {
	s := LineSummary{
		Consolidated: map[string]float64{},
		Inconsistent: []string{},
		Emerging:     []string{},
	}
	for i := range lines {
		l := &lines[i]
		switch {
		case l.Consolidated():
			s.Consolidated[l.Topic] = l.ConsistencyScore
		case l.Inconsistent():
			s.Inconsistent = append(s.Inconsistent, l.Topic)
		default:
			s.Emerging = append(s.Emerging, l.Topic)
		}
	}
	sort.Strings(s.Inconsistent)
	sort.Strings(s.Emerging)
	return s
}
