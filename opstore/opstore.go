// Package opstore persists diff runs into a local SQLite database: one row
// per run, one row per op, with the string table serialized alongside so a
// stored run is self-contained.
package opstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/xldiff/xldiff/diff"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	old_file TEXT NOT NULL,
	new_file TEXT NOT NULL,
	version TEXT NOT NULL,
	complete INTEGER NOT NULL,
	warnings TEXT NOT NULL,
	strings TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ops (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying op store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores one run and its ops in a single transaction, returning
// the run ID.
func (s *Store) SaveReport(oldFile, newFile string, report *diff.Report) (string, error) {
	runID := uuid.NewString()

	warnings, err := json.Marshal(report.Warnings)
	if err != nil {
		return "", err
	}
	strings, err := json.Marshal(report.Strings)
	if err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}

	complete := 0
	if report.Complete {
		complete = 1
	}
	_, err = tx.Exec(
		`INSERT INTO runs (id, old_file, new_file, version, complete, warnings, strings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, oldFile, newFile, report.Version, complete,
		string(warnings), string(strings), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		tx.Rollback()
		return "", err
	}

	for seq, op := range report.Ops {
		body, err := diff.MarshalOp(op)
		if err != nil {
			tx.Rollback()
			return "", err
		}
		if _, err := tx.Exec(
			`INSERT INTO ops (run_id, seq, kind, body) VALUES (?, ?, ?, ?)`,
			runID, seq, op.OpKind(), string(body),
		); err != nil {
			tx.Rollback()
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// LoadReport reconstructs a stored run.
func (s *Store) LoadReport(runID string) (*diff.Report, error) {
	row := s.db.QueryRow(
		`SELECT version, complete, warnings, strings FROM runs WHERE id = ?`, runID)

	var report diff.Report
	var complete int
	var warnings, strings string
	if err := row.Scan(&report.Version, &complete, &warnings, &strings); err != nil {
		return nil, err
	}
	report.Complete = complete != 0
	if err := json.Unmarshal([]byte(warnings), &report.Warnings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(strings), &report.Strings); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT body FROM ops WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		op, err := diff.UnmarshalOp([]byte(body))
		if err != nil {
			return nil, err
		}
		report.Ops = append(report.Ops, op)
	}
	return &report, rows.Err()
}

// Runs lists stored run IDs, newest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
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
