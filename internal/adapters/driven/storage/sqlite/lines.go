package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// lineStore implements driven.LineStore.
type lineStore struct {
	store *Store
}

var _ driven.LineStore = (*lineStore)(nil)

const lineColumns = `
	id, entity_id, topic, record_ids, record_count, first_date, last_date,
	dominant_outcome, dominant_interpretation, criterion,
	outcome_agreement, interpretation_agreement, consistency_score,
	consistent_count, inconsistent_count,
	recurring_tests, paradigmatic_case_ids, exceptions, predictive_factors,
	confidence, analyzed_at`

// ReplaceForEntity deletes every line of the entity, inserts lines and
// writes the summary onto the entity's profile row in one transaction.
// An entity without a profile row keeps its lines; the summary is dropped.
func (s *lineStore) ReplaceForEntity(
	ctx context.Context, entityID string, lines []domain.JurisprudentialLine, summary domain.LineSummary,
) error {
	summaryCols, err := summaryArgs(summary)
	if err != nil {
		return fmt.Errorf("marshalling line summary of %s: %w", entityID, err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM jurisprudential_lines WHERE entity_id = ?", entityID); err != nil {
		return persistErr("deleting lines of "+entityID, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO jurisprudential_lines ("+lineColumns+
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return persistErr("preparing statement", err)
	}
	defer stmt.Close()

	for i := range lines {
		l := &lines[i]
		args, err := lineArgs(entityID, l)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return persistErr(fmt.Sprintf("inserting line %s/%s", entityID, l.Topic), err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE entity_profiles
		SET consolidated_lines = ?, inconsistent_lines = ?, emerging_lines = ?
		WHERE entity_id = ?
	`, append(summaryCols, entityID)...)
	if err != nil {
		return persistErr("updating line summary of "+entityID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Warn("Entity %s has no profile; line summary not stored", entityID)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("committing transaction", err)
	}
	return nil
}

// ListByEntity returns an entity's lines ordered by topic.
func (s *lineStore) ListByEntity(ctx context.Context, entityID string) ([]domain.JurisprudentialLine, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+lineColumns+" FROM jurisprudential_lines WHERE entity_id = ? ORDER BY topic", entityID)
	if err != nil {
		return nil, persistErr("querying lines", err)
	}
	defer rows.Close()

	var lines []domain.JurisprudentialLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating lines", err)
	}
	return lines, nil
}

func lineArgs(entityID string, l *domain.JurisprudentialLine) ([]any, error) {
	encoded := make([]string, 0, 5)
	for _, v := range []any{
		nonNil(l.RecordIDs), nonNil(l.RecurringTests), nonNil(l.ParadigmaticCaseIDs),
		nonNil(l.Exceptions), nonNil(l.PredictiveFactors),
	} {
		s, err := marshalJSON(v)
		if err != nil {
			return nil, fmt.Errorf("marshalling line %s/%s: %w", entityID, l.Topic, err)
		}
		encoded = append(encoded, s)
	}

	return []any{
		l.ID, entityID, l.Topic, encoded[0], l.RecordCount(),
		nullDate(l.FirstDate), nullDate(l.LastDate),
		l.DominantOutcome, l.DominantInterpretation, l.Criterion,
		nullRatio(l.OutcomeAgreement), nullRatio(l.InterpretationAgreement), l.ConsistencyScore,
		l.ConsistentCount, l.InconsistentCount,
		encoded[1], encoded[2], encoded[3], encoded[4],
		l.Confidence, formatTime(l.AnalyzedAt),
	}, nil
}

func scanLine(row rowScanner) (*domain.JurisprudentialLine, error) {
	var (
		l                                       domain.JurisprudentialLine
		recordIDs, tests, paradigms, exceptions string
		factors, analyzedAt                     string
		recordCount                             int
		firstDate, lastDate                     sql.NullString
		outcomeAgreement, interpAgreement       sql.NullFloat64
	)
	err := row.Scan(
		&l.ID, &l.EntityID, &l.Topic, &recordIDs, &recordCount, &firstDate, &lastDate,
		&l.DominantOutcome, &l.DominantInterpretation, &l.Criterion,
		&outcomeAgreement, &interpAgreement, &l.ConsistencyScore,
		&l.ConsistentCount, &l.InconsistentCount,
		&tests, &paradigms, &exceptions, &factors,
		&l.Confidence, &analyzedAt,
	)
	if err != nil {
		return nil, persistErr("scanning line", err)
	}

	decode := []struct {
		src  string
		dest any
	}{
		{recordIDs, &l.RecordIDs},
		{tests, &l.RecurringTests},
		{paradigms, &l.ParadigmaticCaseIDs},
		{exceptions, &l.Exceptions},
		{factors, &l.PredictiveFactors},
	}
	for _, d := range decode {
		if err := unmarshalJSON(d.src, d.dest); err != nil {
			return nil, fmt.Errorf("unmarshalling line %s: %w", l.ID, err)
		}
	}

	l.FirstDate = parseDate(firstDate)
	l.LastDate = parseDate(lastDate)
	l.OutcomeAgreement = ratioFrom(outcomeAgreement)
	l.InterpretationAgreement = ratioFrom(interpAgreement)
	l.AnalyzedAt = parseTime(analyzedAt)
	return &l, nil
}
