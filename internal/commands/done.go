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
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. It toggles completion, so running
// it on a completed task reopens it.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string  { return "Toggle a task's completion" }
func (c *DoneCmd) Usage() string     { return "todo done <ref>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}
	task, code := resolveTask(ctx, a, args, errOut)
	if code != exitcode.Success {
		return code
	}

	if err := a.Engine().Toggle(ctx, task.ID); err != nil {
		return report(errOut, err)
	}
	return printOK(a, out)
}
