package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.AnalysisRecord
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]map[string]domain.AnalysisRecord)}
}

// Save upserts a record.
func (s *RecordStore) Save(_ context.Context, record *domain.AnalysisRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(*record)
	return nil
}

// SaveBatch upserts records. Validation happens before any write.
func (s *RecordStore) SaveBatch(_ context.Context, records []domain.AnalysisRecord) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.put(r)
	}
	return nil
}

func (s *RecordStore) put(r domain.AnalysisRecord) {
	byDoc, ok := s.records[r.EntityID]
	if !ok {
		byDoc = make(map[string]domain.AnalysisRecord)
		s.records[r.EntityID] = byDoc
	}
	byDoc[r.DocumentID] = r
}

// ListByEntity returns an entity's records ordered by document id.
func (s *RecordStore) ListByEntity(_ context.Context, entityID string) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDoc := s.records[entityID]
	out := make([]domain.AnalysisRecord, 0, len(byDoc))
	for _, r := range byDoc {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// ListEntities returns entity ids having at least minRecords records.
func (s *RecordStore) ListEntities(_ context.Context, minRecords int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for id, byDoc := range s.records {
		if len(byDoc) >= minRecords && len(byDoc) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byDoc := range s.records {
		n += len(byDoc)
	}
	return n, nil
}
