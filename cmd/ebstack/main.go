// Command ebstack runs a randomized, concurrent workload against a stack,
// reporting the runtime, and optionally verifying that every pushed value
// was popped exactly once.
//
// Run with: go run ./cmd/ebstack --goroutines=1024 --ops=100 --verify
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		// already printed by cobra
		os.Exit(1)
	}
}
