// Command wallsync fuses the recorded logs of interactive wall study
// sessions into per-user datasets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		// Use stderr directly; the logger may not be initialized yet.
		os.Stderr.WriteString("wallsync: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
