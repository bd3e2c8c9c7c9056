package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/browse"
	"github.com/Clark-Hu/movie-feaster/internal/comment"
	"github.com/Clark-Hu/movie-feaster/internal/config"
	"github.com/Clark-Hu/movie-feaster/internal/detail"
	"github.com/Clark-Hu/movie-feaster/internal/kv"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
	"github.com/Clark-Hu/movie-feaster/internal/rating"
	"github.com/Clark-Hu/movie-feaster/internal/session"
)

// SessionSource reports the current application session.
type SessionSource interface {
	Info() session.Info
}

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Session  SessionSource
	Ledger   *ledger.Ledger
	Views    *detail.Registry
	Sync     *detail.Sync
	Ratings  *rating.Workflow
	Comments *comment.Service
	Browse   *browse.Service
	// Health is pinged by /healthz. Optional.
	Health kv.Pinger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	deps    Deps
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/session", s.handleSession)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleSearchMovies)
		r.Get("/genres", s.handleGenres)
		r.Get("/export", s.handleExport)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Post("/refresh", s.handleRefreshMovie)
			r.Put("/rating/selection", s.handleSelectRating)
			r.Post("/rating", s.handleSubmitRating)
			r.Post("/comments", s.handleSubmitComment)
		})
	})
	s.router.Get("/ledger", s.handleListLedger)
	s.router.Delete("/ledger", s.handleClearLedger)
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "feaster")
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Session.Info())
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
