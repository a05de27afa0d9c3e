package session

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore stores runs in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// init creates the database schema.
func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		goal TEXT NOT NULL,
		device_id TEXT,
		status TEXT NOT NULL,
		summary TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		raw_reply TEXT,
		parsed INTEGER NOT NULL,
		action TEXT,
		command TEXT,
		validation_reason TEXT,
		executed_ok INTEGER NOT NULL,
		failure_kind TEXT,
		attempts INTEGER,
		confirmed INTEGER,
		duration_ns INTEGER,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save writes the run and replaces its step rows in one transaction.
func (s *SQLiteStore) Save(run *Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, goal, device_id, status, summary, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			summary = excluded.summary,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		run.ID, run.Goal, run.DeviceID, run.Status, run.Summary, run.Error,
		run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM steps WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}
	for _, step := range run.Steps {
		var confirmed interface{}
		if step.Confirmed != nil {
			confirmed = *step.Confirmed
		}
		_, err := tx.Exec(`
			INSERT INTO steps (run_id, idx, raw_reply, parsed, action, command,
				validation_reason, executed_ok, failure_kind, attempts, confirmed,
				duration_ns, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, step.Index, step.RawReply, step.Parsed, step.Action,
			step.CommandJSON, step.ValidationReason, step.ExecutedOK,
			step.FailureKind, step.Attempts, confirmed,
			int64(step.Duration), step.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save step %d: %w", step.Index, err)
		}
	}
	return tx.Commit()
}

// Load reads a run and its steps.
func (s *SQLiteStore) Load(id string) (*Run, error) {
	run := &Run{Steps: []StepRecord{}}
	err := s.db.QueryRow(`
		SELECT id, goal, device_id, status, summary, error, created_at, updated_at
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.Goal, &run.DeviceID, &run.Status, &run.Summary, &run.Error,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	rows, err := s.db.Query(`
		SELECT idx, raw_reply, parsed, action, command, validation_reason,
			executed_ok, failure_kind, attempts, confirmed, duration_ns, timestamp
		FROM steps WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step StepRecord
		var confirmed sql.NullBool
		var durationNS int64
		var ts time.Time
		err := rows.Scan(&step.Index, &step.RawReply, &step.Parsed, &step.Action,
			&step.CommandJSON, &step.ValidationReason, &step.ExecutedOK,
			&step.FailureKind, &step.Attempts, &confirmed, &durationNS, &ts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if confirmed.Valid {
			v := confirmed.Bool
			step.Confirmed = &v
		}
		step.Duration = time.Duration(durationNS)
		step.Timestamp = ts
		run.Steps = append(run.Steps, step)
	}
	return run, rows.Err()
}

// List returns run IDs, newest first.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
