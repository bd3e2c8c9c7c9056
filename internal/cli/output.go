package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-feaster/internal/browse"
	"github.com/Clark-Hu/movie-feaster/internal/detail"
	"github.com/Clark-Hu/movie-feaster/internal/domain"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
	"github.com/Clark-Hu/movie-feaster/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the server refused the request
	ExitCommandError = 2 // bad flags, unreachable server
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError picks the exit code from err: server refusals exit with
// ExitFailure, everything else with ExitCommandError.
func WrapExitError(message string, err error) *ExitError {
	code := ExitCommandError
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code = ExitFailure
	}
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderMovies prints a search result table.
func RenderMovies(w io.Writer, movies []domain.Movie) {
	if len(movies) == 0 {
		fmt.Fprintln(w, "no movies found")
		return
	}
	fmt.Fprintf(w, "%5s  %-32s %4s  %-4s  %s\n", "ID", "TITLE", "YEAR", "AVG", "GENRES")
	for _, m := range movies {
		fmt.Fprintf(w, "%5d  %-32s %4d  %-4s  %s\n",
			m.ID, truncate(m.Title, 32), m.Year, score(m.InAppRating), genreLabels(m.Genres))
	}
}

// RenderDetail prints one movie detail view.
func RenderDetail(w io.Writer, st detail.State) {
	if st.Movie == nil {
		fmt.Fprintf(w, "movie %d is not loaded\n", st.MovieID)
		if st.Error != "" {
			fmt.Fprintf(w, "error: %s\n", st.Error)
		}
		return
	}
	m := st.Movie
	fmt.Fprintf(w, "%s (%d)\n", m.Title, m.Year)
	fmt.Fprintf(w, "Genres:    %s\n", genreLabels(m.Genres))
	fmt.Fprintf(w, "Directors: %s\n", strings.Join(m.Directors, ", "))
	fmt.Fprintf(w, "Cast:      %s\n", strings.Join(m.Cast, ", "))
	fmt.Fprintf(w, "Rating:    %s  In-app: %s\n", score(m.Popularity), score(m.InAppRating))
	fmt.Fprintf(w, "You:       %s\n", yourRating(st))
	if m.Overview != "" {
		fmt.Fprintf(w, "\n%s\n", m.Overview)
	}
	fmt.Fprintf(w, "\nComments (%d)\n", len(m.Comments))
	for _, c := range m.Comments {
		fmt.Fprintf(w, "  - %s\n", c.Text)
	}
}

// RenderRating prints the outcome of a rating submit.
func RenderRating(w io.Writer, resp RatingResponse) {
	title := fmt.Sprintf("movie %d", resp.Result.MovieID)
	if resp.View.Movie != nil {
		title = resp.View.Movie.Title
	}
	fmt.Fprintf(w, "rated %s %s (%d/5), %s\n",
		title, stars(resp.Result.Rating), resp.Result.Rating, plural(resp.Result.RatingCount, "rating"))
	if resp.View.Movie != nil {
		fmt.Fprintf(w, "in-app average is now %s\n", score(resp.View.Movie.InAppRating))
	}
}

// RenderGenres prints genre constants next to their labels.
func RenderGenres(w io.Writer, genres []browse.Genre) {
	for _, g := range genres {
		fmt.Fprintf(w, "%-20s %s\n", g.Value, g.Label)
	}
}

// RenderSession prints the server's session info.
func RenderSession(w io.Writer, info session.Info) {
	fmt.Fprintf(w, "Session:  %s\n", info.ID)
	if info.PreviousID != "" {
		fmt.Fprintf(w, "Previous: %s\n", info.PreviousID)
	}
	fmt.Fprintf(w, "Started:  %s\n", info.StartedAt.UTC().Format(time.RFC3339))
	if info.Reset {
		fmt.Fprintf(w, "Reset:    yes, %s cleared\n", plural(info.Cleared, "ledger key"))
	} else {
		fmt.Fprintln(w, "Reset:    no")
	}
}

// RenderLedger prints the ledger entries.
func RenderLedger(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "ledger is empty")
		return
	}
	fmt.Fprintf(w, "%8s  %-6s  %s\n", "MOVIE", "RATING", "COUNT")
	for _, e := range entries {
		r := "-"
		if e.HasRated {
			r = stars(e.Rating)
		}
		fmt.Fprintf(w, "%8d  %-6s  %d\n", e.MovieID, r, e.RatingCount)
	}
}

func yourRating(st detail.State) string {
	switch {
	case st.RatingSubmitting && !st.HasRated:
		return "submitting"
	case st.HasRated:
		return fmt.Sprintf("%s (%d/5)", stars(st.UserRating), st.UserRating)
	default:
		return "not rated"
	}
}

func stars(n int) string {
	if n < 0 {
		n = 0
	}
	if n > domain.MaxRating {
		n = domain.MaxRating
	}
	return strings.Repeat("*", n) + strings.Repeat(".", domain.MaxRating-n)
}

func score(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func genreLabels(genres []string) string {
	labels := make([]string, 0, len(genres))
	for _, g := range genres {
		labels = append(labels, domain.GenreLabel(g))
	}
	return strings.Join(labels, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
