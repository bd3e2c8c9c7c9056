package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// SQLite is a file-backed Store for state that must outlive page navigation
// within a running process.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// Safe to call on an existing file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO client_state (key, value) VALUES (?, ?)
        ON CONFLICT (key) DO UPDATE SET
            value = excluded.value,
            updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	// LIKE folds ASCII case, so the prefix is compared exactly instead.
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM client_state WHERE substr(key, 1, ?) = ? ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Ping verifies the database file is still usable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
