package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// profileStore implements driven.ProfileStore.
type profileStore struct {
	store *Store
}

var _ driven.ProfileStore = (*profileStore)(nil)

const profileColumns = `
	entity_id, record_count,
	activism, formalism, rights_protection, legislative_deference, executive_deference,
	normative_interpretation, evidence_standard, dominant_bias,
	protected_rights, applied_tests, in_dubio_pro, biases, cited_sources,
	categorical_frequency, cognition, recurring_topics,
	confidence, confidence_model,
	consolidated_lines, inconsistent_lines, emerging_lines,
	manifest_version, vector_path, run_id, updated_at`

// Replace deletes the entity's profile row and inserts the new one in a single transaction.
func (s *profileStore) Replace(ctx context.Context, p *domain.EntityProfile) error {
	args, err := profileArgs(p)
	if err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM entity_profiles WHERE entity_id = ?", p.EntityID); err != nil {
		return persistErr("deleting profile "+p.EntityID, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := "INSERT INTO entity_profiles (" + profileColumns + ") VALUES (" + placeholders + ")"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return persistErr("inserting profile "+p.EntityID, err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("committing transaction", err)
	}
	return nil
}

// Get retrieves a profile.
func (s *profileStore) Get(ctx context.Context, entityID string) (*domain.EntityProfile, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM entity_profiles WHERE entity_id = ?", entityID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all profiles ordered by entity id.
func (s *profileStore) List(ctx context.Context) ([]domain.EntityProfile, error) {
	return s.query(ctx, "SELECT "+profileColumns+" FROM entity_profiles ORDER BY entity_id")
}

// Search matches term case-insensitively against ids, labels and recurring topics.
func (s *profileStore) Search(ctx context.Context, term string, limit int) ([]domain.EntityProfile, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	pattern := "%" + escapeLike(term) + "%"
	return s.query(ctx, "SELECT "+profileColumns+` FROM entity_profiles
		WHERE lower(entity_id) LIKE ?1 ESCAPE '\'
		   OR lower(COALESCE(normative_interpretation, '')) LIKE ?1 ESCAPE '\'
		   OR lower(COALESCE(evidence_standard, '')) LIKE ?1 ESCAPE '\'
		   OR lower(COALESCE(dominant_bias, '')) LIKE ?1 ESCAPE '\'
		   OR lower(recurring_topics) LIKE ?1 ESCAPE '\'
		ORDER BY entity_id
		LIMIT ?2`, pattern, limit)
}

// ReferencedVectorPaths returns every non-empty vector path held by a profile row.
func (s *profileStore) ReferencedVectorPaths(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT vector_path FROM entity_profiles
		WHERE vector_path IS NOT NULL AND vector_path != ''
		ORDER BY vector_path
	`)
	if err != nil {
		return nil, persistErr("querying vector paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, persistErr("scanning vector path", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating vector paths", err)
	}
	return paths, nil
}

// SetVectorPath records where the entity's vector file lives.
func (s *profileStore) SetVectorPath(ctx context.Context, entityID, path, manifestVersion string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE entity_profiles SET vector_path = ?, manifest_version = ? WHERE entity_id = ?
	`, nullString(path), manifestVersion, entityID)
	if err != nil {
		return persistErr("updating vector path of "+entityID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return persistErr("checking rows affected", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *profileStore) query(ctx context.Context, query string, args ...any) ([]domain.EntityProfile, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("querying profiles", err)
	}
	defer rows.Close()

	var profiles []domain.EntityProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating profiles", err)
	}
	return profiles, nil
}

// profileArgs flattens a profile into column values in profileColumns order.
func profileArgs(p *domain.EntityProfile) ([]any, error) {
	args := []any{p.EntityID, p.RecordCount}
	for _, name := range domain.JudicialMetrics {
		m, _ := p.Judicial.Metric(name)
		args = append(args, nullMetric(m))
	}
	for _, name := range domain.JudicialLabels {
		args = append(args, nullString(string(p.Judicial.Label(name))))
	}

	jsonFields := make([]any, 0, len(domain.JudicialMaps)+3)
	for _, name := range domain.JudicialMaps {
		jsonFields = append(jsonFields, p.Judicial.Map(name))
	}
	jsonFields = append(jsonFields, p.CategoricalFrequency, p.Cognition, nonNil(p.RecurringTopics))
	for _, v := range jsonFields {
		s, err := marshalJSON(v)
		if err != nil {
			return nil, fmt.Errorf("marshalling profile %s: %w", p.EntityID, err)
		}
		args = append(args, s)
	}

	args = append(args, p.Confidence, p.ConfidenceModel)

	summary, err := summaryArgs(domain.LineSummary{
		Consolidated: p.ConsolidatedLines,
		Inconsistent: p.InconsistentLines,
		Emerging:     p.EmergingLines,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling line summary of %s: %w", p.EntityID, err)
	}
	args = append(args, summary...)

	args = append(args, p.ManifestVersion, nullString(p.VectorPath), p.RunID, formatTime(p.UpdatedAt))
	return args, nil
}

// summaryArgs encodes the consolidated, inconsistent and emerging columns.
func summaryArgs(s domain.LineSummary) ([]any, error) {
	consolidated := s.Consolidated
	if consolidated == nil {
		consolidated = map[string]float64{}
	}
	out := make([]any, 0, 3)
	for _, v := range []any{consolidated, nonNil(s.Inconsistent), nonNil(s.Emerging)} {
		str, err := marshalJSON(v)
		if err != nil {
			return nil, err
		}
		out = append(out, str)
	}
	return out, nil
}

func scanProfile(row rowScanner) (*domain.EntityProfile, error) {
	var (
		p          domain.EntityProfile
		metrics    = make([]sql.NullFloat64, len(domain.JudicialMetrics))
		labels     = make([]sql.NullString, len(domain.JudicialLabels))
		maps       = make([]string, len(domain.JudicialMaps))
		freq       string
		cognition  string
		topics     string
		consol     string
		incons     string
		emerging   string
		vectorPath sql.NullString
		updatedAt  string
	)

	dest := []any{&p.EntityID, &p.RecordCount}
	for i := range metrics {
		dest = append(dest, &metrics[i])
	}
	for i := range labels {
		dest = append(dest, &labels[i])
	}
	for i := range maps {
		dest = append(dest, &maps[i])
	}
	dest = append(dest, &freq, &cognition, &topics, &p.Confidence, &p.ConfidenceModel,
		&consol, &incons, &emerging, &p.ManifestVersion, &vectorPath, &p.RunID, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, persistErr("scanning profile", err)
	}

	for i, name := range domain.JudicialMetrics {
		p.Judicial.SetMetric(name, metricFrom(metrics[i]))
	}
	for i, name := range domain.JudicialLabels {
		p.Judicial.SetLabel(name, domain.Label(labels[i].String))
	}
	for i, name := range domain.JudicialMaps {
		var m domain.ScoreMap
		if err := unmarshalJSON(maps[i], &m); err != nil {
			return nil, fmt.Errorf("unmarshalling %s of %s: %w", name, p.EntityID, err)
		}
		if len(m) > 0 {
			p.Judicial.SetMap(name, m)
		}
	}

	decode := []struct {
		src  string
		dest any
	}{
		{freq, &p.CategoricalFrequency},
		{cognition, &p.Cognition},
		{topics, &p.RecurringTopics},
		{consol, &p.ConsolidatedLines},
		{incons, &p.InconsistentLines},
		{emerging, &p.EmergingLines},
	}
	for _, d := range decode {
		if err := unmarshalJSON(d.src, d.dest); err != nil {
			return nil, fmt.Errorf("unmarshalling profile %s: %w", p.EntityID, err)
		}
	}

	p.VectorPath = vectorPath.String
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// escapeLike escapes LIKE wildcards using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
