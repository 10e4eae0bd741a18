// cellgen CLI - generates typed singleton stores for Go records
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/cellgen/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	code := cli.GetExitCode(err)

	// Commands print their own formatted errors; only flag parsing and
	// similar cobra failures reach here unreported.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code = cli.ExitCommandError
	}
	stop()
	os.Exit(code)
}
