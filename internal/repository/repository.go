package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/movie-feaster/internal/store"
)

// Querier is the subset of *pgxpool.Pool the repositories use. It is also
// satisfied by pgxmock.PgxPoolIface.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates the Postgres-backed repositories.
type Repository struct {
	State *StateRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithQuerier(st.Pool())
}

// NewWithQuerier builds repositories directly from a pool or a mock.
func NewWithQuerier(q Querier) *Repository {
	return &Repository{
		State: &StateRepository{db: q},
	}
}
