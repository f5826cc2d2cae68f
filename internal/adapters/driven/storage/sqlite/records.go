package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

const upsertRecordSQL = `
	INSERT INTO analysis_records (entity_id, document_id, topic, outcome, decided_on, cognition, judicial, ingested_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(entity_id, document_id) DO UPDATE SET
		topic = excluded.topic,
		outcome = excluded.outcome,
		decided_on = excluded.decided_on,
		cognition = excluded.cognition,
		judicial = excluded.judicial,
		ingested_at = excluded.ingested_at
`

// Save upserts a single record.
func (s *recordStore) Save(ctx context.Context, record *domain.AnalysisRecord) error {
	return s.SaveBatch(ctx, []domain.AnalysisRecord{*record})
}

// SaveBatch upserts records in one transaction.
func (s *recordStore) SaveBatch(ctx context.Context, records []domain.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return persistErr("preparing statement", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return err
		}
		cognition, err := marshalJSON(r.Cognition)
		if err != nil {
			return fmt.Errorf("marshalling cognition of %s: %w", r.DocumentID, err)
		}
		var judicial sql.NullString
		if r.HasJudicial() {
			j, err := marshalJSON(r.Judicial)
			if err != nil {
				return fmt.Errorf("marshalling judicial layer of %s: %w", r.DocumentID, err)
			}
			judicial = sql.NullString{String: j, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			r.EntityID, r.DocumentID, r.Topic, r.Outcome, nullDate(r.Date),
			cognition, judicial, formatTime(r.IngestedAt),
		)
		if err != nil {
			return persistErr(fmt.Sprintf("saving record %s/%s", r.EntityID, r.DocumentID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("committing transaction", err)
	}
	return nil
}

// ListByEntity returns every record of an entity ordered by document id.
func (s *recordStore) ListByEntity(ctx context.Context, entityID string) ([]domain.AnalysisRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity_id, document_id, topic, outcome, decided_on, cognition, judicial, ingested_at
		FROM analysis_records
		WHERE entity_id = ?
		ORDER BY document_id
	`, entityID)
	if err != nil {
		return nil, persistErr("querying records", err)
	}
	defer rows.Close()

	var records []domain.AnalysisRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating records", err)
	}
	return records, nil
}

// ListEntities returns entity ids with at least minRecords records, sorted.
func (s *recordStore) ListEntities(ctx context.Context, minRecords int) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity_id
		FROM analysis_records
		GROUP BY entity_id
		HAVING COUNT(*) >= ?
		ORDER BY entity_id
	`, minRecords)
	if err != nil {
		return nil, persistErr("querying entities", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scanning entity", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating entities", err)
	}
	return ids, nil
}

// Count returns the total number of stored records.
func (s *recordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_records").Scan(&n); err != nil {
		return 0, persistErr("counting records", err)
	}
	return n, nil
}

func scanRecord(row rowScanner) (*domain.AnalysisRecord, error) {
	var (
		r          domain.AnalysisRecord
		decidedOn  sql.NullString
		cognition  string
		judicial   sql.NullString
		ingestedAt string
	)
	err := row.Scan(&r.EntityID, &r.DocumentID, &r.Topic, &r.Outcome, &decidedOn, &cognition, &judicial, &ingestedAt)
	if err != nil {
		return nil, persistErr("scanning record", err)
	}

	r.Date = parseDate(decidedOn)
	r.IngestedAt = parseTime(ingestedAt)
	if err := unmarshalJSON(cognition, &r.Cognition); err != nil {
		return nil, fmt.Errorf("unmarshalling cognition of %s: %w", r.DocumentID, err)
	}
	if judicial.Valid {
		var j domain.JudicialLayer
		if err := unmarshalJSON(judicial.String, &j); err != nil {
			return nil, fmt.Errorf("unmarshalling judicial layer of %s: %w", r.DocumentID, err)
		}
		if j.HasData() {
			r.Judicial = &j
		}
	}
	return &r, nil
}
