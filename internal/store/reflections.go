package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vthunder/plantbud/internal/types"
)

// SaveReflection stores a new reflection record
func (s *DB) SaveReflection(ctx context.Context, r types.ReflectionRecord) error {
	if r.ID == "" {
		return fmt.Errorf("reflection id required")
	}
	decisions, err := json.Marshal(r.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reflections (id, ts, subject_id, analysis_summary, decisions, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UTC(), r.SubjectID, r.AnalysisSummary, string(decisions), string(r.Outcome))
	return err
}

// LatestReflection returns the most recent reflection, or nil when there is none
func (s *DB) LatestReflection(ctx context.Context) (*types.ReflectionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, subject_id, analysis_summary, decisions, outcome
		FROM reflections ORDER BY ts DESC, id DESC LIMIT 1`)
	r, err := scanReflection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// RecentReflections returns up to n reflections, newest first
func (s *DB) RecentReflections(ctx context.Context, n int) ([]*types.ReflectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, subject_id, analysis_summary, decisions, outcome
		FROM reflections ORDER BY ts DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.ReflectionRecord
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetReflectionOutcome records the outcome once. updated is false if the
// reflection does not exist or already has an outcome.
func (s *DB) SetReflectionOutcome(ctx context.Context, id string, outcome types.Outcome) (updated bool, err error) {
	if outcome == types.OutcomeUnset {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reflections SET outcome = ?
		WHERE id = ? AND (outcome IS NULL OR outcome = '')`, string(outcome), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReflection(row scanner) (*types.ReflectionRecord, error) {
	var (
		r                         types.ReflectionRecord
		subject, summary, outcome sql.NullString
		decisions                 string
	)
	if err := row.Scan(&r.ID, &r.Timestamp, &subject, &summary, &decisions, &outcome); err != nil {
		return nil, err
	}
	r.SubjectID = subject.String
	r.AnalysisSummary = summary.String
	r.Outcome = types.Outcome(outcome.String)
	if err := json.Unmarshal([]byte(decisions), &r.Decisions); err != nil {
		return nil, fmt.Errorf("reflection %s: decode decisions: %w", r.ID, err)
	}
	return &r, nil
}
