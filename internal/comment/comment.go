// Package comment posts user comments and refreshes the detail view.
package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/detail"
)

var (
	// ErrEmptyComment is returned for blank comments. No request is made.
	ErrEmptyComment = errors.New("comment: comment must not be empty")
	// ErrInFlight is returned while the view is already posting a comment.
	ErrInFlight = errors.New("comment: submit already in progress")
	// ErrSubmitFailed wraps catalog failures.
	ErrSubmitFailed = errors.New("comment: submit failed")
)

// Submitter posts comments to the catalog.
type Submitter interface {
	SubmitComment(ctx context.Context, id int, text string) error
}

// Loader refreshes a view.
type Loader interface {
	Load(ctx context.Context, v *detail.View, isRefresh bool) error
}

// Service submits comments.
type Service struct {
	catalog Submitter
	loader  Loader
	logger  *zap.Logger
}

// NewService wires a Service. A nil logger discards output.
func NewService(catalog Submitter, loader Loader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, loader: loader, logger: logger.Named("comment")}
}

// Submit posts text for the movie in v and then refreshes v so the new
// comment shows up. A failed refresh is recorded on the view only.
func (s *Service) Submit(ctx context.Context, v *detail.View, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyComment
	}
	if !v.BeginComment() {
		return ErrInFlight
	}
	defer v.EndComment()

	if err := s.catalog.SubmitComment(ctx, v.MovieID(), text); err != nil {
		s.logger.Warn("comment submit failed", zap.Int("movie_id", v.MovieID()), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if err := s.loader.Load(ctx, v, true); err != nil && !errors.Is(err, detail.ErrStale) {
		s.logger.Warn("refresh after comment failed", zap.Int("movie_id", v.MovieID()), zap.Error(err))
	}
	return nil
}
