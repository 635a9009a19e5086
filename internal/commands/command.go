// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	log "github.com/sirupsen/logrus"

	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/tasks"
)

// Requirement tells the dispatcher what a command needs before it runs.
type Requirement int

const (
	// RequiresNothing commands only get the config (help, version).
	RequiresNothing Requirement = iota

	// RequiresSession commands get the loaded session but no task store
	// (login, signup, logout, whoami).
	RequiresSession

	// RequiresTasks commands get the session and a task manager. The
	// manager is loaded when someone is signed in (serve).
	RequiresTasks

	// RequiresSignIn commands get a loaded task manager and fail with an
	// auth error when nobody is signed in (list, add, done, undone, rm).
	RequiresSignIn
)

// Session is the authentication state the commands work against.
// *auth.Tracker implements it.
type Session interface {
	SignIn(ctx context.Context, email, password string) (auth.Identity, error)
	SignUp(ctx context.Context, email, password string) (auth.Identity, error)
	SignOut() error
	Identity() (auth.Identity, bool)
	CurrentOwner() string
	Subscribe(fn func(owner string)) (cancel func())
}

// Env is everything a command may use while running. Fields a command's
// Requirement does not ask for are nil.
type Env struct {
	// Config is always provided (config dir, settings, common flags).
	Config *config.Config

	// Log is the shared logger; never nil.
	Log log.FieldLogger

	// In is where passwords are read from.
	In io.Reader

	Session Session
	Tasks   *tasks.Manager
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// Requires reports what the dispatcher must set up in Env.
	Requires() Requirement

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}
