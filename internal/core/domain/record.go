package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by extractor output.
const DateLayout = "2006-01-02"

// AnalysisRecord is the per-document output of the external extractor.
// Records are immutable once ingested; (EntityID, DocumentID) identifies one.
type AnalysisRecord struct {
	EntityID   string
	DocumentID string
	Topic      string
	Outcome    string
	// Date is the decision date. The zero value means unknown.
	Date       time.Time
	Cognition  CognitiveLayer
	Judicial   *JudicialLayer
	IngestedAt time.Time
}

// Score implements ScoreSource.
func (r *AnalysisRecord) Score(key string) (float64, bool) {
	return lookupScore(r.Cognition, r.Judicial, key)
}

// HasJudicial reports whether the judicial subtree carries any data.
func (r *AnalysisRecord) HasJudicial() bool {
	return r.Judicial.HasData()
}

// Validate checks the identifying fields.
func (r *AnalysisRecord) Validate() error {
	if strings.TrimSpace(r.EntityID) == "" {
		return fmt.Errorf("record without entity_id: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(r.DocumentID) == "" {
		return fmt.Errorf("record for %s without document_id: %w", r.EntityID, ErrInvalidInput)
	}
	return nil
}

// recordJSON is the wire shape of a record.
type recordJSON struct {
	EntityID      string          `json:"entity_id"`
	DocumentID    string          `json:"document_id"`
	Topic         json.RawMessage `json:"topic,omitempty"`
	Outcome       json.RawMessage `json:"outcome,omitempty"`
	Date          json.RawMessage `json:"date,omitempty"`
	Cognition     *CognitiveLayer `json:"cognition,omitempty"`
	JudicialLayer *JudicialLayer  `json:"judicial_layer,omitempty"`
	Judicial      *JudicialLayer  `json:"judicial,omitempty"`
}

// MarshalJSON encodes the record in extractor format.
func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		EntityID   string          `json:"entity_id"`
		DocumentID string          `json:"document_id"`
		Topic      string          `json:"topic,omitempty"`
		Outcome    string          `json:"outcome,omitempty"`
		Date       string          `json:"date,omitempty"`
		Cognition  *CognitiveLayer `json:"cognition,omitempty"`
		Judicial   *JudicialLayer  `json:"judicial_layer,omitempty"`
	}{
		EntityID:   r.EntityID,
		DocumentID: r.DocumentID,
		Topic:      r.Topic,
		Outcome:    r.Outcome,
	}
	if !r.Date.IsZero() {
		out.Date = r.Date.Format(DateLayout)
	}
	if !r.Cognition.IsEmpty() {
		c := r.Cognition
		out.Cognition = &c
	}
	if r.Judicial.HasData() {
		out.Judicial = r.Judicial
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes extractor output. Identity fields must be strings;
// every other field degrades to absent when it has the wrong type.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	*r = AnalysisRecord{
		EntityID:   strings.TrimSpace(in.EntityID),
		DocumentID: strings.TrimSpace(in.DocumentID),
		Topic:      decodeString(in.Topic),
		Outcome:    decodeString(in.Outcome),
		Date:       ParseDate(decodeString(in.Date)),
	}
	if in.Cognition != nil {
		r.Cognition = *in.Cognition
	}
	switch {
	case in.JudicialLayer.HasData():
		r.Judicial = in.JudicialLayer
	case in.Judicial.HasData():
		r.Judicial = in.Judicial
	}
	return nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
// Unparseable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
