package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// DefaultWorkers is the batch concurrency when none is configured.
const DefaultWorkers = 4

// EntityLocks serializes work on the same entity within the process.
// Aggregation and line analysis both write the profile row, so they share one.
type EntityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEntityLocks creates an empty lock table.
func NewEntityLocks() *EntityLocks {
	return &EntityLocks{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the entity's lock and returns its release func.
func (l *EntityLocks) Lock(entityID string) func() {
	l.mu.Lock()
	m, ok := l.locks[entityID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[entityID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// entityFunc processes one entity. A domain.ErrNoData error marks the entity skipped.
type entityFunc func(ctx context.Context, entityID string) (detail string, err error)

// runBatch applies fn to every entity with bounded concurrency. Per-entity
// errors never abort the batch; each is recorded as an outcome.
func runBatch(ctx context.Context, entityIDs []string, workers int, fn entityFunc) *domain.BatchReport {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	start := time.Now()

	outcomes := make([]domain.EntityOutcome, len(entityIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range entityIDs {
		g.Go(func() error {
			outcomes[i] = runOne(gctx, id, fn)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].EntityID < outcomes[j].EntityID })
	report := &domain.BatchReport{Outcomes: make([]domain.EntityOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		report.Add(o)
	}
	report.Duration = time.Since(start)
	logger.Info("Batch finished: %d succeeded, %d skipped, %d failed",
		report.Succeeded, report.Skipped, report.Failed)
	return report
}

func runOne(ctx context.Context, entityID string, fn entityFunc) domain.EntityOutcome {
	if err := ctx.Err(); err != nil {
		return domain.EntityOutcome{EntityID: entityID, Status: domain.OutcomeFailed, Detail: err.Error(), Err: err}
	}
	detail, err := fn(ctx, entityID)
	switch {
	case err == nil:
		return domain.EntityOutcome{EntityID: entityID, Status: domain.OutcomeSucceeded, Detail: detail}
	case errors.Is(err, domain.ErrNoData):
		logger.Warn("Skipping %s: %v", entityID, err)
		return domain.EntityOutcome{EntityID: entityID, Status: domain.OutcomeSkipped, Detail: err.Error()}
	default:
		logger.Error("%s: %v", entityID, err)
		return domain.EntityOutcome{EntityID: entityID, Status: domain.OutcomeFailed, Detail: err.Error(), Err: err}
	}
}
