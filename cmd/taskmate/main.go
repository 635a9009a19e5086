// Package main is the entry point for the taskmate CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskmate/internal/cli"
	"taskmate/internal/commands"
)

func main() {
	// Cancel on interrupt so serve shuts down cleanly
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, cli.DefaultBackend{})

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
