package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure AggregatorService implements the interface.
var _ driving.ProfileAggregator = (*AggregatorService)(nil)

// DefaultTopTopics is the number of recurring topics kept on a profile.
const DefaultTopTopics = 10

// AggregatorOptions configures an AggregatorService.
type AggregatorOptions struct {
	Confidence domain.ConfidenceModel
	TopTopics  int
	Workers    int
	Clock      Clock
	Locks      *EntityLocks
}

// AggregatorService consolidates records into entity profiles.
type AggregatorService struct {
	records    driven.RecordStore
	profiles   driven.ProfileStore
	vectors    driven.VectorStore
	vectorizer *Vectorizer
	confidence domain.ConfidenceModel
	topTopics  int
	workers    int
	clock      Clock
	locks      *EntityLocks
}

// NewAggregatorService creates a new aggregator.
// The vectors parameter is optional (can be nil); without it no vector files are written.
func NewAggregatorService(
	records driven.RecordStore,
	profiles driven.ProfileStore,
	vectors driven.VectorStore,
	vectorizer *Vectorizer,
	opts AggregatorOptions,
) *AggregatorService {
	if opts.Confidence == nil {
		opts.Confidence = domain.StepConfidence{}
	}
	if opts.TopTopics <= 0 {
		opts.TopTopics = DefaultTopTopics
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Locks == nil {
		opts.Locks = NewEntityLocks()
	}
	return &AggregatorService{
		records:    records,
		profiles:   profiles,
		vectors:    vectors,
		vectorizer: vectorizer,
		confidence: opts.Confidence,
		topTopics:  opts.TopTopics,
		workers:    opts.Workers,
		clock:      opts.Clock,
		locks:      opts.Locks,
	}
}

// Aggregate recomputes one entity's profile and replaces the stored row.
func (s *AggregatorService) Aggregate(ctx context.Context, entityID string) (*domain.AggregationResult, error) {
	logger.Section("Aggregation: " + entityID)
	unlock := s.locks.Lock(entityID)
	defer unlock()

	records, err := s.records.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading records for %s: %w", entityID, err)
	}

	profile, skipped := BuildProfile(entityID, records, s.confidence, s.topTopics)
	if profile == nil {
		return nil, fmt.Errorf("entity %s has no record with judicial data: %w", entityID, domain.ErrNoData)
	}
	logger.Debug("Using %d records (%d without judicial data)", profile.RecordCount, skipped)

	profile.RunID = uuid.NewString()
	profile.UpdatedAt = s.clock.Now()
	profile.ManifestVersion = s.vectorizer.Manifest().Version()

	// The line summary belongs to the line analyzer; carry it over.
	prior, err := s.profiles.Get(ctx, entityID)
	switch {
	case err == nil:
		profile.ConsolidatedLines = prior.ConsolidatedLines
		profile.InconsistentLines = prior.InconsistentLines
		profile.EmergingLines = prior.EmergingLines
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("loading prior profile %s: %w", entityID, err)
	}

	// The vector goes to a run-specific path; the prior row's file stays
	// untouched until orphan cleanup.
	if s.vectors != nil {
		path, err := s.vectors.Write(ctx, entityID, profile.RunID, profile.ManifestVersion, s.vectorizer.Vectorize(profile))
		if err != nil {
			return nil, fmt.Errorf("writing vector for %s: %w", entityID, err)
		}
		profile.VectorPath = path
	}

	if err := s.profiles.Replace(ctx, profile); err != nil {
		if profile.VectorPath != "" {
			if rmErr := s.vectors.Remove(ctx, profile.VectorPath); rmErr != nil {
				logger.Warn("Removing uncommitted vector %s: %v", profile.VectorPath, rmErr)
			}
		}
		return nil, fmt.Errorf("replacing profile %s: %w", entityID, err)
	}
	logger.Info("Profile %s: %d records, confidence %.2f", entityID, profile.RecordCount, profile.Confidence)

	return &domain.AggregationResult{Profile: profile, Skipped: skipped}, nil
}

// AggregateAll aggregates every entity holding at least one record.
func (s *AggregatorService) AggregateAll(ctx context.Context) (*domain.BatchReport, error) {
	ids, err := s.records.ListEntities(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	logger.Section(fmt.Sprintf("Aggregating %d entities", len(ids)))
	return runBatch(ctx, ids, s.workers, func(ctx context.Context, id string) (string, error) {
		res, err := s.Aggregate(ctx, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d records, confidence %.2f", res.Profile.RecordCount, res.Profile.Confidence), nil
	}), nil
}

// BuildProfile aggregates records that carry judicial data. It returns nil
// when none do, along with the number of records excluded.
// Numeric fields average only over records containing them; nested maps
// average each key over the records containing that key; categorical
// fields take the mode, ties by first encounter.
func BuildProfile(
	entityID string, records []domain.AnalysisRecord, model domain.ConfidenceModel, topTopics int,
) (*domain.EntityProfile, int) {
	metrics := map[string]*mean{}
	for _, name := range domain.JudicialMetrics {
		metrics[name] = &mean{}
	}
	maps := map[string]mapMean{}
	for _, name := range domain.JudicialMaps {
		maps[name] = mapMean{}
	}
	labels := map[string]*counter{}
	for _, name := range domain.JudicialLabels {
		labels[name] = newCounter()
	}
	cognition := map[string]mapMean{}
	for _, name := range domain.CognitiveSections {
		cognition[name] = mapMean{}
	}
	topics := newCounter()

	used, skipped := 0, 0
	for i := range records {
		r := &records[i]
		if !r.HasJudicial() {
			skipped++
			continue
		}
		used++
		for _, name := range domain.JudicialMetrics {
			if m, _ := r.Judicial.Metric(name); m.Valid {
				metrics[name].Add(m.Value)
			}
		}
		for _, name := range domain.JudicialMaps {
			maps[name].Add(r.Judicial.Map(name))
		}
		for _, name := range domain.JudicialLabels {
			labels[name].Add(string(r.Judicial.Label(name)))
		}
		for _, name := range domain.CognitiveSections {
			section, _ := r.Cognition.Section(name)
			cognition[name].Add(section)
		}
		if r.Topic != "" {
			topics.Add(domain.NormalizeTopic(r.Topic))
		}
	}
	if used == 0 {
		return nil, skipped
	}

	p := &domain.EntityProfile{
		EntityID:             entityID,
		RecordCount:          used,
		CategoricalFrequency: map[string]map[string]int{},
		RecurringTopics:      topics.Top(topTopics),
		Confidence:           model.Confidence(used),
		ConfidenceModel:      model.Name(),
	}
	for _, name := range domain.JudicialMetrics {
		p.Judicial.SetMetric(name, metrics[name].Metric())
	}
	for _, name := range domain.JudicialMaps {
		p.Judicial.SetMap(name, maps[name].ScoreMap())
	}
	for _, name := range domain.JudicialLabels {
		if mode, _, ok := labels[name].Mode(); ok {
			p.Judicial.SetLabel(name, domain.Label(mode))
			p.CategoricalFrequency[name] = labels[name].Frequencies()
		}
	}
	for _, name := range domain.CognitiveSections {
		p.Cognition.SetSection(name, cognition[name].ScoreMap())
	}
	return p, skipped
}
