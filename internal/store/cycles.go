package store

import (
	"context"
	"encoding/json"
	"time"
)

// CycleRecord is the bookkeeping row of one engine cycle
type CycleRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Status     string    `json:"status"`
	Errors     []string  `json:"errors,omitempty"`
}

// RecordCycle stores a finished cycle
func (s *DB) RecordCycle(ctx context.Context, c CycleRecord) error {
	errs, err := json.Marshal(c.Errors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycles (id, started_at, finished_at, subject_id, status, errors)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.StartedAt.UTC(), c.FinishedAt.UTC(), c.SubjectID, c.Status, string(errs))
	return err
}

// CountCyclesSince counts cycles started at or after since
func (s *DB) CountCyclesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cycles WHERE started_at >= ?`, since.UTC()).Scan(&n)
	return n, err
}

// MarkNotified records that a once-per-day notification of kind was sent for
// day (YYYY-MM-DD). first is false when it had already been recorded.
func (s *DB) MarkNotified(ctx context.Context, kind, day string, at time.Time) (first bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications (kind, day, sent_at) VALUES (?, ?, ?)`,
		kind, day, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// WasNotified reports whether kind was already sent for day
func (s *DB) WasNotified(ctx context.Context, kind, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE kind = ? AND day = ?`, kind, day).Scan(&n)
	return n > 0, err
}
