package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"

	"taskmate/internal/exitcode"
	"taskmate/internal/httpapi"
)

func init() {
	Register(&ServeCmd{})
}

// ServeCmd implements the serve command.
type ServeCmd struct {
	addr string

	// Listener, when set, is served instead of listening on addr (for testing).
	Listener net.Listener
}

func (c *ServeCmd) Name() string          { return "serve" }
func (c *ServeCmd) Aliases() []string     { return nil }
func (c *ServeCmd) Synopsis() string      { return "Serve the task list over a local HTTP API" }
func (c *ServeCmd) Usage() string         { return "taskmate serve [--addr host:port]" }
func (c *ServeCmd) Requires() Requirement { return RequiresTasks }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	ln := c.Listener
	if ln == nil {
		addr := c.addr
		if addr == "" {
			addr = env.Config.Serve.Addr
		}
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "listening on http://%s\n", ln.Addr())
	}
	srv := httpapi.New(env.Tasks, env.Session, env.Log,
		httpapi.WithAllowedOrigins(env.Config.Serve.AllowedOrigins...))
	if err := srv.Serve(ctx, ln); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
