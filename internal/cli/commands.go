package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

type filterFlags struct {
	title    string
	director string
	cast     string
	genre    string
	year     int
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title contains")
	cmd.Flags().StringVar(&f.director, "director", "", "director name contains")
	cmd.Flags().StringVar(&f.cast, "cast", "", "cast member contains")
	cmd.Flags().StringVar(&f.genre, "genre", "", "genre constant, e.g. SCIENCE_FICTION")
	cmd.Flags().IntVar(&f.year, "year", 0, "release year")
}

func (f *filterFlags) values() url.Values {
	q := url.Values{}
	for key, val := range map[string]string{
		"title": f.title, "director": f.director, "cast": f.cast, "genre": f.genre,
	} {
		if v := strings.TrimSpace(val); v != "" {
			q.Set(key, v)
		}
	}
	if f.year > 0 {
		q.Set("year", strconv.Itoa(f.year))
	}
	return q
}

func parseMovieID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid movie id %q", raw)}
	}
	return id, nil
}

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	var (
		filters filterFlags
		sortBy  string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog",
		Long: `Search the catalog, optionally sorted.

Examples:
  feaster search --genre SCIENCE_FICTION --sort year-desc
  feaster search --director Nolan --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			q := filters.values()
			if sortBy != "" {
				q.Set("sort", sortBy)
			}
			movies, err := c.Search(cmd.Context(), q)
			if err != nil {
				return WrapExitError("search failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), movies)
			}
			RenderMovies(cmd.OutOrStdout(), movies)
			return nil
		},
	}
	filters.bind(cmd)
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort order, e.g. title-asc or inapp-rating-desc")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "show <movie-id>",
		Short: "Show a movie and your rating for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			st, err := c.Show(cmd.Context(), id)
			if err == nil && refresh {
				st, err = c.Refresh(cmd.Context(), id)
			}
			if err != nil {
				return WrapExitError("load movie failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			RenderDetail(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the view after opening it")
	return cmd
}

// NewRateCommand creates the rate command.
func NewRateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <movie-id> <stars>",
		Short: "Rate a movie from 1 to 5 stars",
		Long: `Rate a movie from 1 to 5 stars.

A movie can be rated once per server session. A failed submit leaves
no rating behind and can be retried.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil || !domain.ValidRating(value) {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("stars must be 1-5, got %q", args[1])}
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Rate(cmd.Context(), id, value)
			if err != nil {
				return WrapExitError("rating failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			RenderRating(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <movie-id> <text>...",
		Short: "Comment on a movie",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			st, err := c.Comment(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return WrapExitError("comment failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			RenderDetail(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

// NewGenresCommand creates the genres command.
func NewGenresCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List catalog genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			genres, err := c.Genres(cmd.Context())
			if err != nil {
				return WrapExitError("list genres failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), genres)
			}
			RenderGenres(cmd.OutOrStdout(), genres)
			return nil
		},
	}
}

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var (
		filters filterFlags
		format  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the filtered catalog",
		Long: `Download the filtered catalog as pretty text, JSON, XML or CSV.

The file is written under the name the server suggests unless --output
is given. Use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			dl, err := c.Export(cmd.Context(), filters.values(), domain.ParseExportFormat(format))
			if err != nil {
				return WrapExitError("export failed", err)
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(dl.Body)
				return err
			}
			path := output
			if path == "" {
				path = dl.Filename
			}
			if err := os.WriteFile(path, dl.Body, 0o644); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "write export", Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(dl.Body), path)
			return nil
		},
	}
	filters.bind(cmd)
	cmd.Flags().StringVar(&format, "export-format", "pretty", "file format (pretty|json|xml|csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout")
	return cmd
}

// NewSessionCommand creates the session command.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the server's current rating session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			info, err := c.Session(cmd.Context())
			if err != nil {
				return WrapExitError("load session failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			RenderSession(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the ratings recorded in this session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			entries, err := c.Ledger(cmd.Context())
			if err != nil {
				return WrapExitError("read ledger failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			RenderLedger(cmd.OutOrStdout(), entries)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every recorded rating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			removed, err := c.ClearLedger(cmd.Context())
			if err != nil {
				return WrapExitError("clear ledger failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", plural(removed, "key"))
			return nil
		},
	})
	return cmd
}
