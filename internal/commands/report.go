package commands

import (
	"fmt"
	"io"

	"taskmate/internal/exitcode"
	"taskmate/internal/service"
)

// reportError prints err the way every command does and returns its exit code.
func reportError(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %s\n", service.Message(err, "operation failed"))
	return exitcode.FromError(err)
}

// ok prints the confirmation of a successful mutation.
func ok(env *Env, out io.Writer) int {
	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
