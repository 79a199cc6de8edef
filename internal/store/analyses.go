package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

// AppendAnalysis stores one diagnosis in the analysis log
func (s *DB) AppendAnalysis(ctx context.Context, r types.HistoricalRecord) error {
	var ts sql.NullTime
	if !r.Timestamp.IsZero() {
		ts = sql.NullTime{Time: r.Timestamp.UTC(), Valid: true}
	}
	var subject sql.NullString
	if r.SubjectID != "" {
		subject = sql.NullString{String: r.SubjectID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (ts, subject_id, health, growth_trend, recommended_action, reasoning,
			persona_feeling, persona_needs, persona_concerns, temperature, humidity, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, subject, r.Health, r.GrowthTrend, r.RecommendedAction, r.Reasoning,
		r.PersonaFeeling, r.PersonaNeeds, r.PersonaConcerns,
		nullFloat(r.Temperature), nullFloat(r.Humidity), r.Raw)
	return err
}

// ReadRecentRows returns the last limit rows of the analysis log, oldest
// first, including incomplete rows.
func (s *DB) ReadRecentRows(ctx context.Context, limit int) ([]types.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, subject_id, health, growth_trend, recommended_action, reasoning,
			persona_feeling, persona_needs, persona_concerns, temperature, humidity, raw
		FROM analyses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.HistoricalRecord
	for rows.Next() {
		var (
			ts                                   sql.NullTime
			subject, health, growth, action, why sql.NullString
			feeling, needs, concerns, raw        sql.NullString
			temp, hum                            sql.NullFloat64
		)
		if err := rows.Scan(&ts, &subject, &health, &growth, &action, &why,
			&feeling, &needs, &concerns, &temp, &hum, &raw); err != nil {
			return nil, err
		}
		rec := types.HistoricalRecord{
			SubjectID:         subject.String,
			Health:            health.String,
			GrowthTrend:       growth.String,
			RecommendedAction: action.String,
			Reasoning:         why.String,
			PersonaFeeling:    feeling.String,
			PersonaNeeds:      needs.String,
			PersonaConcerns:   concerns.String,
			Temperature:       floatPtr(temp),
			Humidity:          floatPtr(hum),
			Raw:               raw.String,
			Source:            "analysis_log",
		}
		if ts.Valid {
			rec.Timestamp = ts.Time
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountAnalysesSince counts diagnoses recorded at or after since
func (s *DB) CountAnalysesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE ts >= ?`, since.UTC()).Scan(&n)
	return n, err
}

// CountAnalyses counts all rows of the analysis log
func (s *DB) CountAnalyses(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n)
	return n, err
}
