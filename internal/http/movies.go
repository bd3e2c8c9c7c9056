package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/catalog"
	"github.com/Clark-Hu/movie-feaster/internal/comment"
	"github.com/Clark-Hu/movie-feaster/internal/detail"
	"github.com/Clark-Hu/movie-feaster/internal/domain"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
	"github.com/Clark-Hu/movie-feaster/internal/rating"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type ratingSubmitResponse struct {
	Result rating.Result `json:"result"`
	View   detail.State  `json:"view"`
}

type ledgerResponse struct {
	Entries []ledger.Entry `json:"entries"`
}

type ledgerClearResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, err := buildMovieFilters(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	sortType, ok := domain.ParseSortType(query.Get("sort"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sort value")
		return
	}

	movies, err := s.deps.Browse.Search(r.Context(), filters, sortType)
	if err != nil {
		s.respondFailure(w, err, true, "Failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, movies)
}

// buildMovieFilters reads the catalog search filters from query parameters.
func buildMovieFilters(query url.Values) (domain.Filters, error) {
	filters := domain.Filters{
		Title:    strings.TrimSpace(query.Get("title")),
		Director: strings.TrimSpace(query.Get("director")),
		Cast:     strings.TrimSpace(query.Get("cast")),
		Genre:    strings.TrimSpace(query.Get("genre")),
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil || year < 0 {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	return filters, nil
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.deps.Browse.Genres(r.Context())
	if err != nil {
		s.respondFailure(w, err, true, "Failed to list genres")
		return
	}
	s.respondJSON(w, http.StatusOK, genres)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, err := buildMovieFilters(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	format := domain.ParseExportFormat(query.Get("format"))

	blob, err := s.deps.Browse.Export(r.Context(), filters, format)
	if err != nil {
		s.respondFailure(w, err, true, "Failed to export movies")
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Body)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	view := s.deps.Views.Open(id)
	if err := s.deps.Sync.Load(r.Context(), view, false); err != nil {
		s.respondFailure(w, err, true, "Failed to load movie")
		return
	}
	s.respondJSON(w, http.StatusOK, view.Snapshot())
}

func (s *Server) handleRefreshMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	view := s.deps.Views.Get(id)
	if err := s.deps.Sync.Load(r.Context(), view, true); err != nil {
		s.respondFailure(w, err, true, "Failed to refresh movie")
		return
	}
	s.respondJSON(w, http.StatusOK, view.Snapshot())
}

func (s *Server) handleSelectRating(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	view := s.deps.Views.Get(id)
	if err := s.deps.Ratings.Select(r.Context(), view, req.Rating); err != nil {
		s.respondFailure(w, err, false, "Failed to select rating")
		return
	}
	s.respondJSON(w, http.StatusOK, view.Snapshot())
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	// The body is optional; a rating in it is selected before submitting.
	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondDecodeError(w, err)
		return
	}

	view := s.deps.Views.Get(id)
	if req.Rating != 0 {
		if err := s.deps.Ratings.Select(r.Context(), view, req.Rating); err != nil {
			s.respondFailure(w, err, false, "Failed to select rating")
			return
		}
	}

	result, err := s.deps.Ratings.Submit(r.Context(), view)
	if err != nil {
		s.respondFailure(w, err, false, "Failed to submit rating")
		return
	}
	s.respondJSON(w, http.StatusOK, ratingSubmitResponse{Result: result, View: view.Snapshot()})
}

func (s *Server) handleSubmitComment(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req commentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	view := s.deps.Views.Get(id)
	if err := s.deps.Comments.Submit(r.Context(), view, req.Comment); err != nil {
		s.respondFailure(w, err, false, "Failed to submit comment")
		return
	}
	s.respondJSON(w, http.StatusCreated, view.Snapshot())
}

func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Ledger.Entries(r.Context())
	if err != nil {
		s.respondFailure(w, err, false, "Failed to read ledger")
		return
	}
	s.respondJSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

func (s *Server) handleClearLedger(w http.ResponseWriter, r *http.Request) {
	removed, err := s.deps.Ledger.ClearAll(r.Context())
	if err != nil {
		s.respondFailure(w, err, false, "Failed to clear ledger")
		return
	}
	s.logger.Info("ledger cleared on request", zap.Int("removed", removed))
	s.respondJSON(w, http.StatusOK, ledgerClearResponse{Removed: removed})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondFailure maps service errors to responses. Unclassified errors are
// reported as upstream failures when upstream is set and as internal
// errors otherwise.
func (s *Server) respondFailure(w http.ResponseWriter, err error, upstream bool, message string) {
	var statusErr *catalog.StatusError
	switch {
	case errors.Is(err, rating.ErrInvalidRating),
		errors.Is(err, rating.ErrNoSelection),
		errors.Is(err, comment.ErrEmptyComment):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, rating.ErrAlreadyRated),
		errors.Is(err, rating.ErrSubmitInFlight),
		errors.Is(err, comment.ErrInFlight),
		errors.Is(err, detail.ErrStale):
		s.respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, rating.ErrSubmitFailed),
		errors.Is(err, comment.ErrSubmitFailed),
		errors.As(err, &statusErr),
		upstream:
		s.logger.Warn(message, zap.Error(err))
		s.respondJSON(w, http.StatusBadGateway, errorResponse{
			Code:    "UPSTREAM_ERROR",
			Message: message + ", please try again",
			Details: map[string]bool{"retryable": true},
		})
	default:
		s.logger.Error(message, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func decodeIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing movie id")
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid movie id")
	}
	return id, nil
}
