package domain

import "time"

// OutcomeStatus is the result of processing one entity in a batch.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// EntityOutcome records how one entity fared in a batch run.
type EntityOutcome struct {
	EntityID string        `json:"entity_id"`
	Status   OutcomeStatus `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
}

// BatchReport tallies a batch run. Outcomes are sorted by entity id.
type BatchReport struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Outcomes  []EntityOutcome `json:"outcomes"`
	Duration  time.Duration   `json:"duration"`
}

// Add records an outcome and updates the tallies.
func (r *BatchReport) Add(o EntityOutcome) {
	r.Total++
	switch o.Status {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// HasFailures reports whether any entity failed.
func (r *BatchReport) HasFailures() bool {
	return r.Failed > 0
}

// AggregationResult is the outcome of aggregating one entity.
type AggregationResult struct {
	Profile *EntityProfile
	// Skipped counts records excluded for lacking judicial data.
	Skipped int
}

// LineAnalysis is the outcome of analysing one entity's lines.
type LineAnalysis struct {
	EntityID string
	Lines    []JurisprudentialLine
	Summary  LineSummary
	// DroppedGroups lists topics with fewer records than the minimum group size.
	DroppedGroups []string
}

// IngestReport tallies one ingest pass.
type IngestReport struct {
	Source   string
	Accepted int
	Skipped  int
	Entities []string
}

// IndexState describes whether an index can serve queries.
type IndexState string

// Index states.
const (
	IndexReady    IndexState = "ready"
	IndexMissing  IndexState = "missing"
	IndexDisabled IndexState = "disabled"
	IndexCorrupt  IndexState = "corrupt"
)

// IndexStatus reports the state of one named vector index.
type IndexStatus struct {
	Name       string     `json:"name"`
	State      IndexState `json:"state"`
	Count      int        `json:"count"`
	Dimensions int        `json:"dimensions"`
	Tag        string     `json:"tag,omitempty"`
	BuildID    string     `json:"build_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// CleanupReport lists orphaned vector files removed from disk.
type CleanupReport struct {
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
}
