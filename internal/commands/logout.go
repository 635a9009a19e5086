package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/exitcode"
	"taskmate/internal/output"
)

func init() {
	Register(&LogoutCmd{})
	Register(&WhoamiCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string          { return "logout" }
func (c *LogoutCmd) Aliases() []string     { return []string{"signout"} }
func (c *LogoutCmd) Synopsis() string      { return "End the session and remove it from disk" }
func (c *LogoutCmd) Usage() string         { return "taskmate logout" }
func (c *LogoutCmd) Requires() Requirement { return RequiresSession }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if _, signedIn := env.Session.Identity(); !signedIn {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	if err := env.Session.SignOut(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	return ok(env, out)
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string          { return "whoami" }
func (c *WhoamiCmd) Aliases() []string     { return nil }
func (c *WhoamiCmd) Synopsis() string      { return "Print the signed-in account" }
func (c *WhoamiCmd) Usage() string         { return "taskmate whoami" }
func (c *WhoamiCmd) Requires() Requirement { return RequiresSession }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	id, signedIn := env.Session.Identity()
	if !signedIn {
		fmt.Fprintln(errOut, "error: not logged in (run: taskmate login)")
		return exitcode.AuthError
	}
	output.FormatIdentity(out, id.Email, id.UserID)
	return exitcode.Success
}
