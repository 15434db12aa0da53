package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"todo/internal/app"
	"todo/internal/exitcode"
	"todo/internal/service"
)

func init() {
	Register(&MoveCmd{})
}

// MoveCmd implements the move command. It reorders tasks within the
// current page.
type MoveCmd struct{}

func (c *MoveCmd) Name() string      { return "move" }
func (c *MoveCmd) Aliases() []string { return []string{"mv"} }
func (c *MoveCmd) Synopsis() string  { return "Move a task to another position on the page" }
func (c *MoveCmd) Usage() string     { return "todo move <ref> <position>" }
func (c *MoveCmd) NeedsAuth() bool   { return true }

func (c *MoveCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MoveCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "error: task reference and position required")
		return exitcode.UserError
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil || pos < 1 {
		fmt.Fprintf(errOut, "error: invalid position: %s\n", args[1])
		return exitcode.UserError
	}

	task, code := resolveTask(ctx, a, args[:1], errOut)
	if code != exitcode.Success {
		return code
	}
	ids := a.Engine().Snapshot().IDs()
	if pos > len(ids) {
		fmt.Fprintf(errOut, "error: position out of range: %d\n", pos)
		return exitcode.UserError
	}

	if err := a.Engine().Reorder(ctx, moveID(ids, task.ID, pos-1)); err != nil {
		return report(errOut, err)
	}
	return printOK(a, out)
}

// moveID returns ids with id moved to index to.
func moveID(ids []service.TaskID, id service.TaskID, to int) []service.TaskID {
	rest := make([]service.TaskID, 0, len(ids))
	for _, other := range ids {
		if other != id {
			rest = append(rest, other)
		}
	}
	if to > len(rest) {
		to = len(rest)
	}
	moved := make([]service.TaskID, 0, len(ids))
	moved = append(moved, rest[:to]...)
	moved = append(moved, id)
	return append(moved, rest[to:]...)
}
