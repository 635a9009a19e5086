package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/exitcode"
)

func init() {
	Register(&DoneCmd{})
	Register(&UndoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string          { return "done" }
func (c *DoneCmd) Aliases() []string     { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string      { return "Mark a task completed" }
func (c *DoneCmd) Usage() string         { return "taskmate done <n>" }
func (c *DoneCmd) Requires() Requirement { return RequiresSignIn }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	return runToggle(ctx, env, args, true, out, errOut)
}

// UndoneCmd implements the undone command.
type UndoneCmd struct{}

func (c *UndoneCmd) Name() string          { return "undone" }
func (c *UndoneCmd) Aliases() []string     { return []string{"reopen"} }
func (c *UndoneCmd) Synopsis() string      { return "Mark a task pending again" }
func (c *UndoneCmd) Usage() string         { return "taskmate undone <n>" }
func (c *UndoneCmd) Requires() Requirement { return RequiresSignIn }

func (c *UndoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UndoneCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	return runToggle(ctx, env, args, false, out, errOut)
}

// runToggle is the shared implementation for done and undone.
func runToggle(ctx context.Context, env *Env, args []string, completed bool, out, errOut io.Writer) int {
	num, err := ParseTaskNumber(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	task, err := taskAt(env.Tasks.Tasks(), num)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if err := env.Tasks.ToggleStatus(ctx, task.ID, completed); err != nil {
		return reportError(errOut, err)
	}
	return ok(env, out)
}
