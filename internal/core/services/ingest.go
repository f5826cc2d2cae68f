package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService loads extractor output into the record store.
type IngestService struct {
	records driven.RecordStore
	clock   Clock
}

// NewIngestService creates a new ingest service.
func NewIngestService(records driven.RecordStore, clock Clock) *IngestService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &IngestService{records: records, clock: clock}
}

// IngestFile opens path and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, path string) (*domain.IngestReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.Ingest(ctx, f, filepath.Base(path))
}

// Ingest accepts a single JSON object, a JSON array of objects, or JSON lines.
// Entries that fail to decode or lack identity fields are skipped.
func (s *IngestService) Ingest(ctx context.Context, r io.Reader, name string) (*domain.IngestReport, error) {
	logger.Section("Ingest: " + name)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	raw, err := splitDocuments(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	report := &domain.IngestReport{Source: name}
	now := s.clock.Now()
	entities := map[string]bool{}
	records := make([]domain.AnalysisRecord, 0, len(raw))
	for i, doc := range raw {
		var rec domain.AnalysisRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			logger.Warn("%s entry %d: %v", name, i+1, err)
			report.Skipped++
			continue
		}
		if err := rec.Validate(); err != nil {
			logger.Warn("%s entry %d: %v", name, i+1, err)
			report.Skipped++
			continue
		}
		rec.IngestedAt = now
		records = append(records, rec)
		entities[rec.EntityID] = true
	}

	if len(records) > 0 {
		if err := s.records.SaveBatch(ctx, records); err != nil {
			return nil, fmt.Errorf("saving records from %s: %w", name, err)
		}
	}
	report.Accepted = len(records)
	for id := range entities {
		report.Entities = append(report.Entities, id)
	}
	sort.Strings(report.Entities)
	logger.Info("%s: %d accepted, %d skipped", name, report.Accepted, report.Skipped)
	return report, nil
}

// splitDocuments returns the raw JSON documents in data. A top-level array
// must be valid as a whole; JSON lines are split and kept individually so a
// malformed line only loses itself.
func splitDocuments(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("decoding array: %w", domain.ErrInvalidInput)
		}
		return arr, nil
	}
	if json.Valid(trimmed) {
		return []json.RawMessage{trimmed}, nil
	}

	var out []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
