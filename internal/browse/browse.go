// Package browse lists, sorts and exports catalog movies.
package browse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/catalog"
	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// Catalog is the read side of the catalog used for browsing.
type Catalog interface {
	Search(ctx context.Context, filters domain.Filters) ([]domain.Movie, error)
	Sort(ctx context.Context, sortType domain.SortType, filters domain.Filters) ([]domain.Movie, error)
	Export(ctx context.Context, filters domain.Filters, format domain.ExportFormat) (*catalog.Export, error)
	Genres(ctx context.Context) ([]string, error)
}

// Genre pairs a catalog genre constant with its display label.
type Genre struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Service implements browsing on top of the catalog.
type Service struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewService wires a Service. A nil logger discards output.
func NewService(c Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: c, logger: logger.Named("browse")}
}

// Search returns movies matching filters. When sortType is set the catalog
// sort endpoint is consulted too; if that fails the unsorted results are
// kept.
func (s *Service) Search(ctx context.Context, filters domain.Filters, sortType domain.SortType) ([]domain.Movie, error) {
	movies, err := s.catalog.Search(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	if sortType == "" || sortType == domain.SortDefault {
		return movies, nil
	}

	sorted, err := s.catalog.Sort(ctx, sortType, filters)
	if err != nil {
		s.logger.Warn("sort request failed, using unsorted results",
			zap.String("sort", string(sortType)), zap.Error(err))
		return movies, nil
	}
	return sorted, nil
}

// Genres lists the catalog genres with display labels.
func (s *Service) Genres(ctx context.Context) ([]Genre, error) {
	raw, err := s.catalog.Genres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	out := make([]Genre, 0, len(raw))
	for _, g := range raw {
		out = append(out, Genre{Value: g, Label: domain.GenreLabel(g)})
	}
	return out, nil
}

// Export forwards the download request and returns the blob unchanged.
func (s *Service) Export(ctx context.Context, filters domain.Filters, format domain.ExportFormat) (*catalog.Export, error) {
	out, err := s.catalog.Export(ctx, filters, format)
	if err != nil {
		return nil, fmt.Errorf("export movies: %w", err)
	}
	return out, nil
}
