// Package catalogmock serves an in-memory movie catalog over the same HTTP
// endpoints as the real backend. It is used by cmd/catalog-mock and by tests.
package catalogmock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// Options tunes the mock.
type Options struct {
	// FailRatings makes every rating submit answer 500.
	FailRatings bool
	// AccessLog enables chi's request logger.
	AccessLog bool
	Logger    *zap.Logger
}

type record struct {
	movie domain.Movie
	sum   float64
	votes int
}

// Catalog holds the mock data set. Safe for concurrent use.
type Catalog struct {
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	movies map[int]*record
}

// LoadSeed reads a JSON array of movies in the catalog wire shape.
func LoadSeed(path string) ([]domain.Movie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var movies []domain.Movie
	if err := json.Unmarshal(raw, &movies); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return movies, nil
}

// New builds a catalog from seed. Seed ratings count as a single vote each.
func New(seed []domain.Movie, opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Catalog{
		opts:   opts,
		logger: opts.Logger.Named("catalogmock"),
		movies: make(map[int]*record, len(seed)),
	}
	for _, m := range seed {
		rec := &record{movie: m}
		if m.InAppRating > 0 {
			rec.sum = m.InAppRating
			rec.votes = 1
		}
		c.movies[m.ID] = rec
	}
	return c
}

// Len reports the number of movies.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.movies)
}

// Handler returns the catalog routes.
func (c *Catalog) Handler() http.Handler {
	r := chi.NewRouter()
	if c.opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Route("/api/movies", func(r chi.Router) {
		r.Get("/search", c.handleSearch)
		r.Get("/sort", c.handleSort)
		r.Get("/export", c.handleExport)
		r.Get("/genres", c.handleGenres)
		r.Get("/{id}", c.handleGet)
		r.Post("/{id}/rating", c.handleRate)
		r.Post("/{id}/comment", c.handleComment)
	})
	return r
}

func (c *Catalog) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	c.mu.RLock()
	rec, found := c.movies[id]
	var movie domain.Movie
	if found {
		movie = rec.snapshot()
	}
	c.mu.RUnlock()
	if !found {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// The rating body is a bare number.
func (c *Catalog) handleRate(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	if c.opts.FailRatings {
		c.logger.Info("failing rating on request", zap.Int("movie_id", id))
		http.Error(w, "rating storage unavailable", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil || !domain.ValidRating(value) {
		http.Error(w, "rating must be a whole number between 1 and 5", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	rec, found := c.movies[id]
	if found {
		rec.sum += float64(value)
		rec.votes++
	}
	c.mu.Unlock()
	if !found {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *Catalog) handleComment(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "malformed comment payload", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		http.Error(w, "comment cannot be empty", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	rec, found := c.movies[id]
	if found {
		rec.movie.Comments = append(rec.movie.Comments, domain.Comment{Text: text})
	}
	c.mu.Unlock()
	if !found {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (c *Catalog) handleSearch(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, c.find(filters))
}

func (c *Catalog) handleSort(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sortType, ok := domain.ParseSortType(r.URL.Query().Get("sortType"))
	if !ok {
		http.Error(w, "unknown sortType", http.StatusBadRequest)
		return
	}
	movies := c.find(filters)
	sortMovies(movies, sortType)
	writeJSON(w, http.StatusOK, movies)
}

func (c *Catalog) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := domain.ParseExportFormat(r.URL.Query().Get("format"))

	body, err := Render(c.find(filters), format)
	if err != nil {
		c.logger.Error("render export", zap.String("format", string(format)), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (c *Catalog) handleGenres(w http.ResponseWriter, _ *http.Request) {
	seen := make(map[string]struct{})
	c.mu.RLock()
	for _, rec := range c.movies {
		for _, g := range rec.movie.Genres {
			seen[g] = struct{}{}
		}
	}
	c.mu.RUnlock()

	genres := make([]string, 0, len(seen))
	for g := range seen {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	writeJSON(w, http.StatusOK, genres)
}

// find returns matching movies ordered by id.
func (c *Catalog) find(f domain.Filters) []domain.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Movie, 0, len(c.movies))
	for _, rec := range c.movies {
		if matches(rec.movie, f) {
			out = append(out, rec.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (rec *record) snapshot() domain.Movie {
	m := rec.movie
	m.Comments = append([]domain.Comment(nil), rec.movie.Comments...)
	if rec.votes > 0 {
		m.InAppRating = rec.sum / float64(rec.votes)
	}
	return m
}

func matches(m domain.Movie, f domain.Filters) bool {
	if f.Title != "" && !containsFold(m.Title, f.Title) {
		return false
	}
	if f.Director != "" && !anyContainsFold(m.Directors, f.Director) {
		return false
	}
	if f.Cast != "" && !anyContainsFold(m.Cast, f.Cast) {
		return false
	}
	if f.Genre != "" && !anyEqualFold(m.Genres, f.Genre) {
		return false
	}
	if f.Year != nil && m.Year != *f.Year {
		return false
	}
	return true
}

func sortMovies(movies []domain.Movie, st domain.SortType) {
	var less func(a, b domain.Movie) bool
	switch st {
	case domain.SortTitleAsc:
		less = func(a, b domain.Movie) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case domain.SortTitleDesc:
		less = func(a, b domain.Movie) bool { return strings.ToLower(a.Title) > strings.ToLower(b.Title) }
	case domain.SortYearAsc:
		less = func(a, b domain.Movie) bool { return a.Year < b.Year }
	case domain.SortYearDesc:
		less = func(a, b domain.Movie) bool { return a.Year > b.Year }
	case domain.SortRatingAsc:
		less = func(a, b domain.Movie) bool { return a.Popularity < b.Popularity }
	case domain.SortRatingDesc:
		less = func(a, b domain.Movie) bool { return a.Popularity > b.Popularity }
	case domain.SortInAppRatingAsc:
		less = func(a, b domain.Movie) bool { return a.InAppRating < b.InAppRating }
	case domain.SortInAppRatingDesc:
		less = func(a, b domain.Movie) bool { return a.InAppRating > b.InAppRating }
	default:
		return
	}
	sort.SliceStable(movies, func(i, j int) bool { return less(movies[i], movies[j]) })
}

func parseFilters(r *http.Request) (domain.Filters, error) {
	q := r.URL.Query()
	f := domain.Filters{
		Title:    strings.TrimSpace(q.Get("title")),
		Director: strings.TrimSpace(q.Get("director")),
		Cast:     strings.TrimSpace(q.Get("cast")),
		Genre:    strings.TrimSpace(q.Get("genre")),
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid year %q", raw)
		}
		f.Year = &year
	}
	return f, nil
}

func movieID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid movie id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func anyContainsFold(values []string, sub string) bool {
	for _, v := range values {
		if containsFold(v, sub) {
			return true
		}
	}
	return false
}

func anyEqualFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
