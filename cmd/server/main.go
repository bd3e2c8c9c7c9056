package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/browse"
	"github.com/Clark-Hu/movie-feaster/internal/catalog"
	"github.com/Clark-Hu/movie-feaster/internal/comment"
	"github.com/Clark-Hu/movie-feaster/internal/config"
	"github.com/Clark-Hu/movie-feaster/internal/detail"
	httpserver "github.com/Clark-Hu/movie-feaster/internal/http"
	"github.com/Clark-Hu/movie-feaster/internal/kv"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
	"github.com/Clark-Hu/movie-feaster/internal/logging"
	"github.com/Clark-Hu/movie-feaster/internal/migrate"
	"github.com/Clark-Hu/movie-feaster/internal/rating"
	"github.com/Clark-Hu/movie-feaster/internal/repository"
	"github.com/Clark-Hu/movie-feaster/internal/session"
	"github.com/Clark-Hu/movie-feaster/internal/store"
)

// backend is an opened ledger store together with its health probe.
type backend struct {
	store  kv.Store
	health kv.Pinger
	close  func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	be, err := openBackend(openCtx, cfg, logger)
	if err != nil {
		logger.Fatal("open ledger backend", zap.String("backend", cfg.LedgerBackend), zap.Error(err))
	}
	defer be.close()

	l := ledger.New(be.store, logger)
	guard := session.NewGuard(be.store, l, session.Options{Logger: logger})
	info, err := guard.Initialize(openCtx)
	if err != nil {
		logger.Fatal("session check failed", zap.Error(err))
	}
	logger.Info("session ready",
		zap.String("session_id", info.ID),
		zap.Bool("reset", info.Reset),
		zap.Int("cleared", info.Cleared))

	catalogClient, err := catalog.NewHTTPClient(cfg.CatalogURL, time.Duration(cfg.CatalogTimeoutSecs)*time.Second, logger)
	if err != nil {
		logger.Fatal("init catalog client", zap.Error(err))
	}

	sync := detail.NewSync(catalogClient, l, logger)
	ratings := rating.NewWorkflow(l, catalogClient, sync, rating.Options{
		RefreshDelay: time.Duration(cfg.RefreshDelayMillis) * time.Millisecond,
		Logger:       logger,
	})

	server := httpserver.New(cfg, httpserver.Deps{
		Session:  guard,
		Ledger:   l,
		Views:    detail.NewRegistry(),
		Sync:     sync,
		Ratings:  ratings,
		Comments: comment.NewService(catalogClient, sync, logger),
		Browse:   browse.NewService(catalogClient, logger),
		Health:   be.health,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	ratings.Wait()
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		m := kv.NewMemory()
		return &backend{store: m, health: m, close: func() {}}, nil

	case config.BackendSQLite:
		s, err := kv.OpenSQLite(cfg.LedgerSQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{store: s, health: s, close: func() { _ = s.Close() }}, nil

	case config.BackendRedis:
		r, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return &backend{store: r, health: r, close: func() { _ = r.Close() }}, nil

	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DBURL); err != nil {
			return nil, err
		}
		st, err := store.New(ctx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			return nil, err
		}
		return &backend{store: repository.New(st).State, health: st, close: st.Close}, nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
}
