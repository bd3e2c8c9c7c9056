package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// StateRepository persists client-side key-value state in the client_state
// table. It implements kv.Store.
type StateRepository struct {
	db Querier
}

// NewStateRepository wraps q.
func NewStateRepository(q Querier) *StateRepository {
	return &StateRepository{db: q}
}

// Get returns the value stored under key.
func (r *StateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM client_state WHERE key = $1`

	var value string
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO client_state (key, value)
        VALUES ($1, $2)
        ON CONFLICT (key)
        DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// Delete removes key if present.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM client_state WHERE key = $1`
	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// Keys lists keys beginning with prefix in lexical byte order.
func (r *StateRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	const query = `
        SELECT key FROM client_state
        WHERE starts_with(key, $1)
        ORDER BY key COLLATE "C"
    `
	rows, err := r.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("list state keys: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
