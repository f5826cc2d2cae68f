package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure LineService implements the interface.
var _ driving.LineAnalyzer = (*LineService)(nil)

const (
	recurringTestsLimit   = 5
	paradigmaticLimit     = 3
	predictiveTestsLimit  = 3
	recencyHorizonDays    = 3650.0
	completenessComponent = 0.5
	breadthPerTest        = 0.2
)

// LineService detects jurisprudential lines.
type LineService struct {
	records  driven.RecordStore
	lines    driven.LineStore
	clock    Clock
	locks    *EntityLocks
	workers  int
	defaults driving.LineOptions
}

// NewLineService creates a new line analyzer. defaults fill zero-valued
// fields of the options passed to Analyze.
func NewLineService(
	records driven.RecordStore,
	lines driven.LineStore,
	clock Clock,
	locks *EntityLocks,
	workers int,
	defaults driving.LineOptions,
) *LineService {
	if clock == nil {
		clock = SystemClock{}
	}
	if locks == nil {
		locks = NewEntityLocks()
	}
	return &LineService{
		records:  records,
		lines:    lines,
		clock:    clock,
		locks:    locks,
		workers:  workers,
		defaults: defaults,
	}
}

func (s *LineService) resolve(opts driving.LineOptions) driving.LineOptions {
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = s.defaults.MinGroupSize
	}
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = domain.DefaultMinGroupSize
	}
	if opts.MissingRatio == "" {
		opts.MissingRatio = s.defaults.MissingRatio
	}
	if opts.MissingRatio == "" {
		opts.MissingRatio = domain.MissingRatioNeutral
	}
	return opts
}

// Analyze recomputes an entity's lines and replaces them with its profile summary.
func (s *LineService) Analyze(
	ctx context.Context, entityID string, opts driving.LineOptions,
) (*domain.LineAnalysis, error) {
	logger.Section("Line analysis: " + entityID)
	opts = s.resolve(opts)
	unlock := s.locks.Lock(entityID)
	defer unlock()

	records, err := s.records.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading records for %s: %w", entityID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("entity %s has no records: %w", entityID, domain.ErrNoData)
	}

	analysis := AnalyzeRecords(entityID, records, opts, s.clock.Now())
	for i := range analysis.Lines {
		analysis.Lines[i].ID = uuid.NewString()
	}
	for _, topic := range analysis.DroppedGroups {
		logger.Debug("Topic %q below minimum group size %d", topic, opts.MinGroupSize)
	}

	if err := s.lines.ReplaceForEntity(ctx, entityID, analysis.Lines, analysis.Summary); err != nil {
		return nil, fmt.Errorf("replacing lines for %s: %w", entityID, err)
	}
	logger.Info("Lines %s: %d lines, %d consolidated, %d inconsistent",
		entityID, len(analysis.Lines), len(analysis.Summary.Consolidated), len(analysis.Summary.Inconsistent))
	return analysis, nil
}

// AnalyzeAll analyzes every entity holding at least one record.
func (s *LineService) AnalyzeAll(ctx context.Context, opts driving.LineOptions) (*domain.BatchReport, error) {
	opts = s.resolve(opts)
	ids, err := s.records.ListEntities(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	logger.Section(fmt.Sprintf("Analyzing lines for %d entities", len(ids)))
	return runBatch(ctx, ids, s.workers, func(ctx context.Context, id string) (string, error) {
		res, err := s.Analyze(ctx, id, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d lines", len(res.Lines)), nil
	}), nil
}

// AnalyzeRecords groups records by normalized topic and computes one line per
// group of at least opts.MinGroupSize records. Lines are ordered by topic.
// Line ids are left empty.
func AnalyzeRecords(
	entityID string, records []domain.AnalysisRecord, opts driving.LineOptions, now time.Time,
) *domain.LineAnalysis {
	groups := map[string][]domain.AnalysisRecord{}
	for _, r := range records {
		topic := domain.NormalizeTopic(r.Topic)
		groups[topic] = append(groups[topic], r)
	}
	topics := make([]string, 0, len(groups))
	for t := range groups {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	analysis := &domain.LineAnalysis{EntityID: entityID, Lines: []domain.JurisprudentialLine{}}
	for _, topic := range topics {
		group := groups[topic]
		if len(group) < opts.MinGroupSize {
			analysis.DroppedGroups = append(analysis.DroppedGroups, topic)
			continue
		}
		analysis.Lines = append(analysis.Lines, buildLine(entityID, topic, group, opts.MissingRatio, now))
	}
	analysis.Summary = domain.SummarizeLines(analysis.Lines)
	return analysis
}

func buildLine(
	entityID, topic string, group []domain.AnalysisRecord, policy domain.MissingRatioPolicy, now time.Time,
) domain.JurisprudentialLine {
	n := len(group)
	line := domain.JurisprudentialLine{
		EntityID:   entityID,
		Topic:      topic,
		RecordIDs:  make([]string, 0, n),
		Confidence: domain.LineConfidence(n),
		AnalyzedAt: now,
	}

	outcomes := newCounter()
	interpretations := newCounter()
	topics := newCounter()
	tests := newCounter()
	for i := range group {
		r := &group[i]
		line.RecordIDs = append(line.RecordIDs, r.DocumentID)
		outcomes.Add(r.Outcome)
		if strings.TrimSpace(r.Topic) != "" {
			topics.Add(domain.NormalizeTopic(r.Topic))
		}
		if r.Judicial != nil {
			interpretations.Add(string(r.Judicial.NormativeInterpretation))
			for _, name := range r.Judicial.AppliedTests.Keys() {
				if r.Judicial.AppliedTests[name] > domain.RecurringTestThreshold {
					tests.Add(name)
				}
			}
		}
		if !r.Date.IsZero() {
			if line.FirstDate.IsZero() || r.Date.Before(line.FirstDate) {
				line.FirstDate = r.Date
			}
			if line.LastDate.IsZero() || r.Date.After(line.LastDate) {
				line.LastDate = r.Date
			}
		}
	}

	line.DominantOutcome, line.OutcomeAgreement = modalRatio(outcomes)
	line.DominantInterpretation, line.InterpretationAgreement = modalRatio(interpretations)
	line.ConsistencyScore = consistency(line.OutcomeAgreement, line.InterpretationAgreement, policy)
	line.ConsistentCount = int(line.ConsistencyScore * float64(n))
	line.InconsistentCount = n - line.ConsistentCount

	recurring := tests.Top(recurringTestsLimit)
	line.RecurringTests = make([]string, 0, len(recurring))
	for _, tc := range recurring {
		line.RecurringTests = append(line.RecurringTests, tc.Topic)
	}

	line.ParadigmaticCaseIDs = paradigmaticCases(group, now)
	line.Exceptions = exceptions(group, line.DominantOutcome)
	line.PredictiveFactors = predictiveFactors(topics, recurring, n)
	line.Criterion = criterion(line.DominantOutcome, line.DominantInterpretation, line.RecurringTests)
	return line
}

// modalRatio returns the mode and count(mode)/count(observations), or nil without observations.
func modalRatio(c *counter) (string, *float64) {
	mode, count, ok := c.Mode()
	if !ok {
		return "", nil
	}
	r := float64(count) / float64(c.Total())
	return mode, &r
}

// consistency averages the agreement ratios. Unobserved ratios are either
// replaced by domain.NeutralRatio or left out of the average, per policy.
func consistency(outcome, interpretation *float64, policy domain.MissingRatioPolicy) float64 {
	var sum float64
	var n int
	for _, r := range []*float64{outcome, interpretation} {
		switch {
		case r != nil:
			sum += *r
			n++
		case policy != domain.MissingRatioExclude:
			sum += domain.NeutralRatio
			n++
		}
	}
	if n == 0 {
		return domain.NeutralRatio
	}
	return clamp01(domain.Round3(sum / float64(n)))
}

// paradigmaticCases ranks records by recency + completeness + breadth and
// returns the top ids. Recency grows with age up to a 10-year horizon,
// so older precedent-setting decisions rank first.
func paradigmaticCases(group []domain.AnalysisRecord, now time.Time) []string {
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(group))
	for i := range group {
		r := &group[i]
		var score float64
		if !r.Date.IsZero() {
			days := now.Sub(r.Date).Hours() / 24
			score += clamp01(days / recencyHorizonDays)
		}
		if r.HasJudicial() {
			score += completenessComponent
			score += math.Min(1, float64(r.Judicial.AppliedTests.CountAbove(domain.RecurringTestThreshold))*breadthPerTest)
		}
		ranked = append(ranked, scored{id: r.DocumentID, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]string, 0, paradigmaticLimit)
	for i := 0; i < len(ranked) && i < paradigmaticLimit; i++ {
		out = append(out, ranked[i].id)
	}
	return out
}

func exceptions(group []domain.AnalysisRecord, dominant string) []domain.LineException {
	out := []domain.LineException{}
	if dominant == "" {
		return out
	}
	for i := range group {
		r := &group[i]
		if r.Outcome == "" || r.Outcome == dominant {
			continue
		}
		out = append(out, domain.LineException{
			DocumentID: r.DocumentID,
			Outcome:    r.Outcome,
			Reason:     fmt.Sprintf("outcome differs from dominant (%s)", dominant),
		})
	}
	return out
}

func predictiveFactors(topics *counter, recurring []domain.TopicCount, groupSize int) []domain.PredictiveFactor {
	out := []domain.PredictiveFactor{}
	if mode, count, ok := topics.Mode(); ok {
		out = append(out, domain.PredictiveFactor{
			Factor: "topic=" + mode,
			Weight: domain.Round3(float64(count) / float64(topics.Total())),
		})
	}
	for i, tc := range recurring {
		if i == predictiveTestsLimit {
			break
		}
		out = append(out, domain.PredictiveFactor{
			Factor: "test=" + tc.Topic,
			Weight: domain.Round3(float64(tc.Count) / float64(groupSize)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func criterion(outcome, interpretation string, tests []string) string {
	var parts []string
	if outcome != "" {
		parts = append(parts, fmt.Sprintf("Tends to %s claims", outcome))
	}
	if interpretation != "" {
		parts = append(parts, fmt.Sprintf("using %s interpretation", interpretation))
	}
	text := strings.Join(parts, ", ")
	if text != "" {
		text += "."
	}
	if len(tests) > 0 {
		n := min(len(tests), predictiveTestsLimit)
		if text != "" {
			text += " "
		}
		text += "Frequently applies: " + strings.Join(tests[:n], ", ")
	}
	return text
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
