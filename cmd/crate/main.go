// Package main is the entry point for the crate CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/aidanlsb/crate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
