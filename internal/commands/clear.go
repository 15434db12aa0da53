package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todo/internal/app"
	"todo/internal/exitcode"
)

func init() {
	Register(&ClearCmd{})
}

// ClearCmd implements the clear command.
type ClearCmd struct {
	yes bool
}

func (c *ClearCmd) Name() string      { return "clear" }
func (c *ClearCmd) Aliases() []string { return nil }
func (c *ClearCmd) Synopsis() string  { return "Delete all completed tasks" }
func (c *ClearCmd) Usage() string     { return "todo clear [--yes]" }
func (c *ClearCmd) NeedsAuth() bool   { return true }

func (c *ClearCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.yes, "yes", false, "")
	fs.BoolVar(&c.yes, "y", false, "")
}

func (c *ClearCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if err := a.Engine().ClearCompleted(ctx, confirmer(c.yes, in, errOut)); err != nil {
		return report(errOut, err)
	}
	return printOK(a, out)
}
