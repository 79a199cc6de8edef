// Package store persists the processed ledger, analysis log, reflections,
// device readings and cycle bookkeeping in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vthunder/plantbud/internal/logging"
)

// DB wraps the SQLite connection
type DB struct {
	db   *sql.DB
	path string

	// ledgerMu serializes ledger appends across concurrent cycles
	ledgerMu sync.Mutex
}

// Open opens or creates the database under statePath
func Open(statePath string) (*DB, error) {
	dbPath := filepath.Join(statePath, "plantbud.db")

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	logging.Debug("store", "opened %s", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *DB) Path() string {
	return s.path
}

func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Processed ledger: one row per normalized image identifier
	CREATE TABLE IF NOT EXISTS processed (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		normalized_id TEXT NOT NULL UNIQUE,
		raw_id TEXT NOT NULL,
		processed_at DATETIME NOT NULL
	);

	-- Analysis log: one row per successful diagnosis. ts and subject_id are
	-- nullable because rows imported from older sheets may lack them.
	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME,
		subject_id TEXT,
		health TEXT,
		growth_trend TEXT,
		recommended_action TEXT,
		reasoning TEXT,
		persona_feeling TEXT,
		persona_needs TEXT,
		persona_concerns TEXT,
		temperature REAL,
		humidity REAL,
		raw TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(ts);

	-- Reflections: decisions of one diagnosed cycle, outcome set by the next
	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL,
		subject_id TEXT,
		analysis_summary TEXT,
		decisions TEXT NOT NULL,
		outcome TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_ts ON reflections(ts);

	CREATE TABLE IF NOT EXISTS device_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		temperature REAL,
		humidity REAL,
		devices TEXT,
		comments TEXT
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.runMigrations()
}

func (s *DB) runMigrations() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	// v2: cycle bookkeeping for the daily summary
	if version < 2 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS cycles (
				id TEXT PRIMARY KEY,
				started_at DATETIME NOT NULL,
				finished_at DATETIME,
				subject_id TEXT,
				status TEXT NOT NULL,
				errors TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
		`); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		s.db.Exec("INSERT INTO schema_version (version) VALUES (2)")
	}

	// v3: once-per-day notification log
	if version < 3 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS notifications (
				kind TEXT NOT NULL,
				day TEXT NOT NULL,
				sent_at DATETIME NOT NULL,
				PRIMARY KEY (kind, day)
			);
		`); err != nil {
			return fmt.Errorf("migration v3: %w", err)
		}
		s.db.Exec("INSERT INTO schema_version (version) VALUES (3)")
	}

	return nil
}

// SchemaVersion returns the applied schema version
func (s *DB) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
