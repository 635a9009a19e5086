package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskmate/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct {
	// Registry lists the commands to describe. Nil means DefaultRegistry.
	Registry *Registry
}

func (c *HelpCmd) Name() string          { return "help" }
func (c *HelpCmd) Aliases() []string     { return nil }
func (c *HelpCmd) Synopsis() string      { return "Print usage" }
func (c *HelpCmd) Usage() string         { return "taskmate help" }
func (c *HelpCmd) Requires() Requirement { return RequiresNothing }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	reg := c.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	fmt.Fprint(out, helpText(reg))
	return exitcode.Success
}

const usageWidth = 48

func helpText(reg *Registry) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	fmt.Fprintf(&b, "  %-*s %s\n", usageWidth, "taskmate", "List tasks")
	for _, cmd := range reg.All() {
		usage := cmd.Usage()
		if len(usage) > usageWidth {
			fmt.Fprintf(&b, "  %s\n  %-*s %s\n", usage, usageWidth, "", cmd.Synopsis())
			continue
		}
		fmt.Fprintf(&b, "  %-*s %s\n", usageWidth, usage, cmd.Synopsis())
	}
	b.WriteString(commonFlagsText)
	return b.String()
}

const commonFlagsText = `
Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Task numbers are the positions printed by "taskmate list".
`
