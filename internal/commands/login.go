package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskmate/internal/exitcode"
)

func init() {
	Register(&LoginCmd{})
	Register(&SignupCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email string
}

// SetEmail sets the account email (for testing).
func (c *LoginCmd) SetEmail(email string) {
	c.email = email
}

func (c *LoginCmd) Name() string          { return "login" }
func (c *LoginCmd) Aliases() []string     { return []string{"signin"} }
func (c *LoginCmd) Synopsis() string      { return "Sign in (password read from stdin)" }
func (c *LoginCmd) Usage() string         { return "taskmate login --email <addr>" }
func (c *LoginCmd) Requires() Requirement { return RequiresSession }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.email, "e", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	email, code, done := credentialsEmail(c.email, args, errOut)
	if done {
		return code
	}

	if id, ok := env.Session.Identity(); ok && strings.EqualFold(id.Email, email) {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	password, err := readPassword(env.In, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if err := env.Config.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if _, err := env.Session.SignIn(ctx, email, password); err != nil {
		return reportError(errOut, err)
	}
	env.Log.WithField("email", email).Debug("login succeeded")
	return ok(env, out)
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	email string
}

// SetEmail sets the account email (for testing).
func (c *SignupCmd) SetEmail(email string) {
	c.email = email
}

func (c *SignupCmd) Name() string          { return "signup" }
func (c *SignupCmd) Aliases() []string     { return []string{"register"} }
func (c *SignupCmd) Synopsis() string      { return "Create an account and sign in" }
func (c *SignupCmd) Usage() string         { return "taskmate signup --email <addr>" }
func (c *SignupCmd) Requires() Requirement { return RequiresSession }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.email, "e", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	email, code, done := credentialsEmail(c.email, args, errOut)
	if done {
		return code
	}

	password, err := readPassword(env.In, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if err := env.Config.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if _, err := env.Session.SignUp(ctx, email, password); err != nil {
		return reportError(errOut, err)
	}
	env.Log.WithField("email", email).Debug("signup succeeded")
	return ok(env, out)
}

// credentialsEmail validates the --email flag and rejects stray arguments.
// done is true when the command must stop with code.
func credentialsEmail(email string, args []string, errOut io.Writer) (string, int, bool) {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return "", exitcode.UserError, true
	}
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(errOut, "error: --email required")
		return "", exitcode.UserError, true
	}
	return email, exitcode.Success, false
}

// readPassword prompts on errOut and reads one line from in.
func readPassword(in io.Reader, errOut io.Writer) (string, error) {
	if in == nil {
		return "", fmt.Errorf("password required")
	}
	fmt.Fprint(errOut, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password required")
	}
	return password, nil
}
