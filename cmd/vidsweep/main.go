package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Backend invocations can run for hours under the scheduler, and scancel
// delivers SIGTERM; cancellation flows through the command context so an
// interrupted slice exits non-zero and stays visible to reconciliation.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "vidsweep:", err)
		}
		os.Exit(1)
	}
}
