package detail

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// ErrStale is returned when a load finished after its view was closed or
// superseded by a newer load. The result is not applied.
var ErrStale = errors.New("detail: view no longer current")

// MovieFetcher fetches the authoritative movie aggregate.
type MovieFetcher interface {
	GetMovie(ctx context.Context, id int) (domain.Movie, error)
}

// RatingReader is the read side of the rating ledger.
type RatingReader interface {
	GetRating(ctx context.Context, movieID int) (int, error)
	GetRatingCount(ctx context.Context, movieID int) (int, error)
}

// Sync loads movies into views.
type Sync struct {
	movies MovieFetcher
	ledger RatingReader
	logger *zap.Logger
}

// NewSync builds a Sync. A nil logger discards output.
func NewSync(movies MovieFetcher, ledger RatingReader, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{movies: movies, ledger: ledger, logger: logger.Named("detail")}
}

// Load fetches the movie shown by v. A full load (isRefresh false) drives the
// loading flag and clears a previous error; a refresh drives the lighter
// refreshing flag and keeps the current movie visible. On success the movie
// is replaced and the rated state is re-derived from the ledger. Failures
// are recorded on the view and never touch the ledger.
func (s *Sync) Load(ctx context.Context, v *View, isRefresh bool) error {
	seq, ok := v.beginLoad(isRefresh)
	if !ok {
		return ErrStale
	}

	movie, fetchErr := s.movies.GetMovie(ctx, v.movieID)

	var rating, count int
	if fetchErr == nil {
		rating, count = s.readLedger(ctx, v.movieID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.current(seq) {
		s.logger.Debug("dropping stale load", zap.Int("movie_id", v.movieID))
		return ErrStale
	}

	v.loading = false
	v.refreshing = false

	if fetchErr != nil {
		v.err = fetchErr
		s.logger.Warn("load movie failed",
			zap.Int("movie_id", v.movieID),
			zap.Bool("refresh", isRefresh),
			zap.Error(fetchErr))
		return fetchErr
	}

	v.movie = &movie
	v.err = nil
	v.ratingCount = count
	switch {
	case rating != 0:
		v.hasRated = true
		v.userRating = rating
	case v.ratingSubmitting:
		// The ledger is written after the remote call returns.
		v.hasRated = true
	default:
		v.hasRated = false
	}
	return nil
}

// Ledger read failures degrade to "not rated".
func (s *Sync) readLedger(ctx context.Context, movieID int) (rating, count int) {
	rating, err := s.ledger.GetRating(ctx, movieID)
	if err != nil {
		s.logger.Warn("read ledger rating failed", zap.Int("movie_id", movieID), zap.Error(err))
		return 0, 0
	}
	count, err = s.ledger.GetRatingCount(ctx, movieID)
	if err != nil {
		s.logger.Warn("read ledger count failed", zap.Int("movie_id", movieID), zap.Error(err))
		return 0, 0
	}
	return rating, count
}
