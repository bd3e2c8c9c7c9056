package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var errClosed = errors.New("store: not open")

// Options tunes the pool backing the Postgres ledger. Zero values keep the
// pgxpool defaults; a negative StatementCacheCapacity leaves the exec mode
// untouched.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *zap.Logger
}

// Store owns the Postgres pool used by the ledger backend.
type Store struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	timeout time.Duration
}

// New opens the pool and refuses to return until the database answers.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	cfg, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("opening ledger pool",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
		zap.Stringer("exec_mode", cfg.ConnConfig.DefaultQueryExecMode))

	s := &Store{logger: logger, timeout: opts.ConnTimeout}
	cctx, cancel := s.bounded(ctx)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s.pool = pool
	return s, nil
}

func poolConfig(dbURL string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = min(opts.MinConns, cfg.MaxConns)
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.StatementCacheCapacity >= 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}
	return cfg, nil
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// Close reports final pool usage and releases every connection.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	st := s.pool.Stat()
	s.logger.Info("closing ledger pool",
		zap.Int64("acquires", st.AcquireCount()),
		zap.Duration("acquire_wait", st.AcquireDuration()),
		zap.Int32("total_conns", st.TotalConns()))
	s.pool.Close()
}

// Ping backs /healthz for the Postgres ledger.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errClosed
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
