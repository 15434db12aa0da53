package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"todo/internal/app"
	"todo/internal/exitcode"
	"todo/internal/filter"
	"todo/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `todo` (no args) and `todo list [filters]`. Filters and the
// page are remembered between runs.
type ListCmd struct {
	search   optString
	status   optString
	priority optString
	page     int
	reset    bool
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "todo list [--search <text>] [--status <all|active|completed|overdue>] [--priority <all|U|H|M|L>] [--page <n>] [--reset]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.search, c.status, c.priority = optString{}, optString{}, optString{}
	fs.Var(&c.search, "search", "")
	fs.Var(&c.search, "s", "")
	fs.Var(&c.status, "status", "")
	fs.Var(&c.priority, "priority", "")
	fs.Var(&c.priority, "p", "")
	fs.IntVar(&c.page, "page", 0, "")
	fs.BoolVar(&c.reset, "reset", false, "")
}

func (c *ListCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.page < 0 {
		fmt.Fprintf(errOut, "error: invalid page number: %d\n", c.page)
		return exitcode.UserError
	}

	patch, err := c.patch()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if c.reset {
		a.Filters().Reset()
	}
	a.Filters().Update(patch)

	if c.page > 0 {
		err = a.Engine().GoToPage(ctx, c.page)
	} else {
		err = a.Start(ctx)
	}
	if err != nil {
		return report(errOut, err)
	}

	p := output.NewPrinter(out, a.Config().NoColor)
	p.Snapshot(a.Engine().Snapshot(), time.Now())
	return exitcode.Success
}

func (c *ListCmd) patch() (filter.Patch, error) {
	var p filter.Patch
	if v := c.search.ptr(); v != nil {
		s := strings.TrimSpace(*v)
		p.Search = &s
	}
	if v := c.status.ptr(); v != nil {
		s := strings.ToLower(strings.TrimSpace(*v))
		if !filter.ValidStatus(s) {
			return filter.Patch{}, fmt.Errorf("invalid status: %s", *v)
		}
		p.Status = &s
	}
	if v := c.priority.ptr(); v != nil {
		s, err := parsePriorityFilter(strings.TrimSpace(*v))
		if err != nil {
			return filter.Patch{}, err
		}
		p.Priority = &s
	}
	return p, nil
}
