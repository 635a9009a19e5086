// Package cli parses the command line, prepares what each command needs
// and dispatches to it.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"

	"taskmate/internal/commands"
	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/logging"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	backend  Backend

	// Stdin is handed to commands that read a password. Nil means os.Stdin.
	Stdin io.Reader
}

// NewDispatcher creates a new dispatcher with the given registry and backend.
func NewDispatcher(registry *commands.Registry, backend Backend) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		backend:  backend,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(err, errOut)
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	requires := cmd.Requires()

	var cfg *config.Config
	var err error
	if requires == commands.RequiresNothing {
		cfg, err = config.New(configDir)
	} else {
		cfg, err = config.Load(configDir)
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.AuthError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	logger := logging.New(debug, errOut)
	env := &commands.Env{Config: cfg, Log: logger, In: d.Stdin}
	if env.In == nil {
		env.In = os.Stdin
	}

	if requires == commands.RequiresNothing {
		return cmd.Run(ctx, env, positionalArgs, out, errOut)
	}

	if debug {
		tp := logging.NewTracerProvider(logger)
		otel.SetTracerProvider(tp)
		defer tp.Shutdown(context.Background())
	}

	session, err := d.backend.OpenSession(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.AuthError
	}
	env.Session = session

	if requires == commands.RequiresSession {
		return cmd.Run(ctx, env, positionalArgs, out, errOut)
	}

	owner := session.CurrentOwner()
	if requires == commands.RequiresSignIn && owner == "" {
		fmt.Fprintf(errOut, "error: not logged in (run: %s login)\n", config.AppName)
		return exitcode.AuthError
	}

	if err := cfg.ValidateBackend(); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.AuthError
	}
	store, err := d.backend.OpenStore(ctx, cfg, session, logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	mgr := tasks.NewManager(service.WithTracing(store), logger)
	cancel := session.Subscribe(func(owner string) {
		if err := mgr.SetOwner(ctx, owner); err != nil {
			logger.WithError(err).WithField("owner", owner).Warn("failed to load tasks for new owner")
		}
	})
	defer cancel()
	env.Tasks = mgr

	if owner != "" {
		if err := mgr.SetOwner(ctx, owner); err != nil {
			if requires == commands.RequiresSignIn {
				fmt.Fprintf(errOut, "error: %s\n", service.Message(err, "failed to fetch tasks"))
				return exitcode.FromError(err)
			}
			logger.WithError(err).Warn("initial task load failed")
		}
	}

	return cmd.Run(ctx, env, positionalArgs, out, errOut)
}

// flagError reports a flag parsing failure.
func flagError(err error, errOut io.Writer) int {
	errStr := err.Error()

	if strings.HasPrefix(errStr, "flag needs an argument:") {
		flagName := strings.TrimSpace(strings.TrimPrefix(errStr, "flag needs an argument:"))
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagName)
		return exitcode.UserError
	}

	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}
