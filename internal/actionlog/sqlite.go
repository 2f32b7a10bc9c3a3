// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package actionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore handles persistence of action log entries to SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the action log database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open action log db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		timestamp INTEGER NOT NULL, -- Unix nanoseconds
		action TEXT NOT NULL,
		threat TEXT,
		result TEXT NOT NULL,
		details TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_actions_threat ON actions(threat);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to init action log schema: %w", err)
	}
	return nil
}

// Save persists a batch in one transaction. Re-saving an entry is a no-op.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO actions (id, seq, timestamp, action, threat, result, details, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details of %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID,
			e.Seq,
			e.Timestamp.UnixNano(),
			e.Action,
			e.Threat,
			string(e.Result),
			string(details),
			e.Error,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Recent returns the newest entries first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, timestamp, action, threat, result, details, error
		FROM actions
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			ts      int64
			result  string
			details string
		)
		if err := rows.Scan(&e.ID, &e.Seq, &ts, &e.Action, &e.Threat, &result, &details, &e.Error); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Result = Result(result)
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("corrupt details for %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
