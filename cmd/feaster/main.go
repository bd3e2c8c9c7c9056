package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Clark-Hu/movie-feaster/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
