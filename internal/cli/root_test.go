package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "feaster", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"search"}, {"show"}, {"rate"}, {"comment"}, {"genres"},
		{"export"}, {"session"}, {"ledger", "list"}, {"ledger", "clear"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("FEASTER_SERVER", "http://feaster.local:9000")
	cmd := NewRootCommand()

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "http://feaster.local:9000", server.DefValue)

	timeout := cmd.PersistentFlags().Lookup("timeout")
	require.NotNil(t, timeout)
	assert.Equal(t, "10s", timeout.DefValue)
}

// fakeServer records requests and answers with canned JSON per route.
type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (fs *fakeServer) Requests() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.requests...)
}

func (fs *fakeServer) Bodies() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.bodies...)
}

func newFakeServer(t *testing.T, routes map[string]func(w http.ResponseWriter)) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, key+"?"+r.URL.RawQuery)
		fs.bodies = append(fs.bodies, string(body))
		fs.mu.Unlock()
		h, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func jsonReply(status int, v interface{}) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func run(t *testing.T, srv *fakeServer, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRateCommand(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"POST /movies/42/rating": jsonReply(http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{"movieId": 42, "state": "committed", "rating": 5, "ratingCount": 1},
			"view":   map[string]interface{}{"movieId": 42, "movie": map[string]interface{}{"movieId": 42, "title": "Arrival", "inAppRating": 5}},
		}),
	})

	out, err := run(t, srv, "rate", "42", "5")
	require.NoError(t, err)
	assert.Equal(t, "rated Arrival ***** (5/5), 1 rating\nin-app average is now 5.0\n", out)
	assert.JSONEq(t, `{"rating":5}`, srv.Bodies()[0])
}

func TestRateCommandConflict(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"POST /movies/42/rating": jsonReply(http.StatusConflict, map[string]string{
			"code": "CONFLICT", "message": "rating: movie already rated this session",
		}),
	})

	_, err := run(t, srv, "rate", "42", "3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "CONFLICT", apiErr.Code)
}

func TestRateCommandRetryable(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"POST /movies/42/rating": jsonReply(http.StatusBadGateway, map[string]interface{}{
			"code": "UPSTREAM_ERROR", "message": "Failed to submit rating, please try again",
			"details": map[string]bool{"retryable": true},
		}),
	})

	_, err := run(t, srv, "rate", "42", "3")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable)
	assert.Contains(t, err.Error(), "(retryable)")
}

func TestRateCommandRejectsBadStars(t *testing.T) {
	srv := newFakeServer(t, nil)
	for _, stars := range []string{"0", "6", "four"} {
		_, err := run(t, srv, "rate", "42", stars)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}
	assert.Empty(t, srv.Requests(), "invalid input must not reach the server")
}

func TestSearchCommandForwardsFilters(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"GET /movies": jsonReply(http.StatusOK, []map[string]interface{}{}),
	})

	out, err := run(t, srv, "search", "--genre", "DRAMA", "--year", "2016", "--sort", "year-desc")
	require.NoError(t, err)
	assert.Equal(t, "no movies found\n", out)
	require.Len(t, srv.Requests(), 1)
	assert.Equal(t, "GET /movies?genre=DRAMA&sort=year-desc&year=2016", srv.Requests()[0])
}

func TestCommentCommandJoinsArgs(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"POST /movies/7/comments": jsonReply(http.StatusCreated, map[string]interface{}{"movieId": 7}),
	})

	_, err := run(t, srv, "comment", "7", "tears", "in", "rain")
	require.NoError(t, err)
	assert.JSONEq(t, `{"comment":"tears in rain"}`, srv.Bodies()[0])
}

func TestLedgerCommands(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"GET /ledger": jsonReply(http.StatusOK, map[string]interface{}{
			"entries": []map[string]interface{}{{"movieId": 42, "hasRated": true, "rating": 4, "ratingCount": 1}},
		}),
		"DELETE /ledger": jsonReply(http.StatusOK, map[string]int{"removed": 2}),
	})

	out, err := run(t, srv, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "      42  ****.   1\n")

	out, err = run(t, srv, "--format", "json", "ledger", "clear")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed":2}`, out)
}

func TestExportCommandWritesFile(t *testing.T) {
	srv := newFakeServer(t, map[string]func(http.ResponseWriter){
		"GET /movies/export": func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="movies_csv.csv"`)
			_, _ = io.WriteString(w, "movieId,title\n42,Arrival\n")
		},
	})

	path := filepath.Join(t.TempDir(), "out.csv")
	out, err := run(t, srv, "export", "--export-format", "csv", "--genre", "DRAMA", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 25 bytes")
	assert.Equal(t, "GET /movies/export?format=CSV&genre=DRAMA", srv.Requests()[0])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "movieId,title\n42,Arrival\n", string(raw))
}

func TestInvalidFormat(t *testing.T) {
	srv := newFakeServer(t, nil)
	_, err := run(t, srv, "--format", "yaml", "genres")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
