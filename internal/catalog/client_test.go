package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, 2*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("localhost:8080", time.Second, nil)
	require.Error(t, err)
}

func TestGetMovieBustsCache(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/42", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Query().Get(CacheBusterParam)] = true
		mu.Unlock()
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		_, _ = io.WriteString(w, `{"movieId":42,"title":"Arrival","year":2016,"genres":["SCIENCE_FICTION"],
			"inAppRating":4.5,"comments":[{"text":"great"},"{\"comment\":\"also great\"}"]}`)
	})
	c := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		m, err := c.GetMovie(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, 42, m.ID)
		assert.Equal(t, "Arrival", m.Title)
		assert.Equal(t, []domain.Comment{{Text: "great"}, {Text: "also great"}}, m.Comments)
	}

	assert.Len(t, seen, 3, "every fetch carries a distinct discriminant")
	assert.NotContains(t, seen, "")
}

func TestGetMovieNotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.GetMovie(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRatingSendsBareNumber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/42/rating", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "4", string(body))
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient(t, mux)
	require.NoError(t, c.SubmitRating(context.Background(), 42, 4))
}

func TestSubmitRatingServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	err := c.SubmitRating(context.Background(), 42, 4)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "submit rating", statusErr.Op)
}

func TestSubmitComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/9/comment", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, map[string]string{"comment": "loved it"}, payload)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, "loved it")
	})
	c := newTestClient(t, mux)
	require.NoError(t, c.SubmitComment(context.Background(), 9, "loved it"))
}

func TestSearchAndSortForwardFilters(t *testing.T) {
	year := 1999
	filters := domain.Filters{Title: "matrix", Director: " Wachowski ", Year: &year}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "matrix", q.Get("title"))
		assert.Equal(t, "Wachowski", q.Get("director"))
		assert.Equal(t, "1999", q.Get("year"))
		assert.False(t, q.Has("cast"))
		_, _ = io.WriteString(w, `[{"movieId":1,"title":"The Matrix"}]`)
	})
	mux.HandleFunc("/api/movies/sort", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "year_desc", q.Get("sortType"))
		assert.Equal(t, "matrix", q.Get("title"))
		_, _ = io.WriteString(w, `[{"movieId":2},{"movieId":1}]`)
	})
	c := newTestClient(t, mux)

	found, err := c.Search(context.Background(), filters)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "The Matrix", found[0].Title)

	sorted, err := c.Sort(context.Background(), domain.SortYearDesc, filters)
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, 2, sorted[0].ID)
}

func TestExportPassesBlobThrough(t *testing.T) {
	const blob = "movieId,title\n1,The Matrix\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CSV", r.URL.Query().Get("format"))
		assert.Equal(t, "ACTION", r.URL.Query().Get("genre"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, blob)
	})
	c := newTestClient(t, mux)

	out, err := c.Export(context.Background(), domain.Filters{Genre: "ACTION"}, domain.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, blob, string(out.Body))
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "movies_csv.csv", out.Filename)
}

func TestExportHonorsContentDisposition(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=movies.txt")
		_, _ = io.WriteString(w, "pretty")
	}))
	out, err := c.Export(context.Background(), domain.Filters{}, domain.FormatPretty)
	require.NoError(t, err)
	assert.Equal(t, "movies.txt", out.Filename)
}

func TestExportRejectsOversizedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 17))
	}))
	c.maxExport = 16

	_, err := c.Export(context.Background(), domain.Filters{}, domain.FormatCSV)
	require.ErrorIs(t, err, ErrExportTooLarge)
}

func TestExportAtLimit(t *testing.T) {
	blob := strings.Repeat("x", 16)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, blob)
	}))
	c.maxExport = 16

	out, err := c.Export(context.Background(), domain.Filters{}, domain.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, blob, string(out.Body))
}

func TestExportFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := c.Export(context.Background(), domain.Filters{}, domain.FormatJSON)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
}

func TestGenres(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies/genres", r.URL.Path)
		_, _ = io.WriteString(w, `["ACTION","SCIENCE_FICTION"]`)
	}))
	genres, err := c.Genres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTION", "SCIENCE_FICTION"}, genres)
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	}))
	_, err := c.Genres(context.Background())
	require.Error(t, err)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := NewHTTPClient(srv.URL, time.Second, nil)
	require.NoError(t, err)
	srv.Close()

	err = c.SubmitRating(context.Background(), 1, 3)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
