package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/catalogmock"
	"github.com/Clark-Hu/movie-feaster/internal/logging"
)

func main() {
	var (
		port        = flag.String("port", "8080", "port to listen on")
		data        = flag.String("data", "data/mock-movies.json", "path to mock data file")
		accessLog   = flag.Bool("log", false, "enable request logging")
		failRatings = flag.Bool("fail-ratings", false, "answer 500 to every rating submit")
	)
	flag.Parse()

	logger, err := logging.New("info", true)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	seed, err := catalogmock.LoadSeed(*data)
	if err != nil {
		logger.Fatal("load mock data", zap.Error(err))
	}

	mock := catalogmock.New(seed, catalogmock.Options{
		FailRatings: *failRatings,
		AccessLog:   *accessLog,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           mock.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("mock catalog listening",
		zap.String("addr", srv.Addr),
		zap.Int("movies", mock.Len()),
		zap.Bool("fail_ratings", *failRatings))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
