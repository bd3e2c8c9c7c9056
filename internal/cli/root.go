// Package cli implements the feaster terminal front end. It drives a running
// feaster server over HTTP.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// DefaultServer is used when neither --server nor FEASTER_SERVER is set.
const DefaultServer = "http://localhost:8080"

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Timeout time.Duration
	Format  string
}

func (o *RootOptions) client() (*Client, error) {
	c, err := NewClient(o.Server, o.Timeout)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid --server", Err: err}
	}
	return c, nil
}

// NewRootCommand creates the root command for the feaster CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	server := os.Getenv("FEASTER_SERVER")
	if server == "" {
		server = DefaultServer
	}

	cmd := &cobra.Command{
		Use:   "feaster",
		Short: "Browse, rate and comment on movies",
		Long: `feaster talks to a running feaster server.

Ratings are limited to one per movie per server session; the server
forgets them when it restarts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "feaster server base URL (env FEASTER_SERVER)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewRateCommand(opts))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewGenresCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
