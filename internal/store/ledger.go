package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/selector"
)

// ReadProcessedIdentifiers returns raw identifiers in insertion order
func (s *DB) ReadProcessedIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_id FROM processed ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendProcessed adds id to the ledger. Appending an identifier that is
// already present (in any case or padding) is a no-op.
func (s *DB) AppendProcessed(ctx context.Context, id string) error {
	_, err := s.appendProcessed(ctx, id, time.Now())
	return err
}

// MarkProcessed is AppendProcessed with an explicit time. inserted is false
// when the identifier was already in the ledger.
func (s *DB) MarkProcessed(ctx context.Context, id string, at time.Time) (inserted bool, err error) {
	return s.appendProcessed(ctx, id, at)
}

func (s *DB) appendProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	norm := selector.NormalizeID(id)
	if norm == "" {
		return false, fmt.Errorf("empty identifier")
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed (normalized_id, raw_id, processed_at) VALUES (?, ?, ?)`,
		norm, strings.TrimSpace(id), at.UTC())
	if err != nil {
		return false, fmt.Errorf("append processed %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ProcessedEntry is one ledger row
type ProcessedEntry struct {
	ID          string    `json:"id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// LastProcessed returns the n most recently appended entries, newest first
func (s *DB) LastProcessed(ctx context.Context, n int) ([]ProcessedEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_id, processed_at FROM processed ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProcessedEntry
	for rows.Next() {
		var e ProcessedEntry
		if err := rows.Scan(&e.ID, &e.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountProcessedSince counts ledger entries appended at or after since
func (s *DB) CountProcessedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed WHERE processed_at >= ?`, since.UTC()).Scan(&n)
	return n, err
}
