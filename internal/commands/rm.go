package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todo/internal/app"
	"todo/internal/exitcode"
	"todo/internal/listsync"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	yes bool
}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "todo rm [--yes] <ref>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.yes, "yes", false, "")
	fs.BoolVar(&c.yes, "y", false, "")
}

func (c *RmCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}
	task, code := resolveTask(ctx, a, args, errOut)
	if code != exitcode.Success {
		return code
	}

	if err := a.Engine().Delete(ctx, task.ID, confirmer(c.yes, in, errOut)); err != nil {
		return report(errOut, err)
	}
	return printOK(a, out)
}

// confirmer approves without asking when yes is set, else prompts.
func confirmer(yes bool, in io.Reader, errOut io.Writer) listsync.ConfirmFunc {
	if yes {
		return func(string) bool { return true }
	}
	return newPrompter(in, errOut).Confirm
}
