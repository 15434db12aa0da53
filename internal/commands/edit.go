package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todo/internal/app"
	"todo/internal/exitcode"
	"todo/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Fields not given keep their
// current value.
type EditCmd struct {
	title     optString
	priority  optString
	due       optString
	noDue     bool
	completed optBool
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change a task" }
func (c *EditCmd) Usage() string {
	return "todo edit [--title <title>] [--priority <U|H|M|L>] [--due <date> | --no-due] [--completed=<bool>] <ref>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.title, c.priority, c.due, c.completed = optString{}, optString{}, optString{}, optBool{}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.priority, "priority", "")
	fs.Var(&c.priority, "p", "")
	fs.Var(&c.due, "due", "")
	fs.BoolVar(&c.noDue, "no-due", false, "")
	fs.Var(&c.completed, "completed", "")
}

func (c *EditCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}
	if c.due.set && c.noDue {
		fmt.Fprintln(errOut, "error: cannot use both --due and --no-due")
		return exitcode.UserError
	}
	if !c.title.set && !c.priority.set && !c.due.set && !c.noDue && !c.completed.set {
		fmt.Fprintln(errOut, "error: nothing to change")
		return exitcode.UserError
	}

	ed, err := c.overrides()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	task, code := resolveTask(ctx, a, args, errOut)
	if code != exitcode.Success {
		return code
	}
	edit := c.apply(task, ed)

	if _, err := a.Engine().Edit(ctx, task.ID, edit); err != nil {
		return report(errOut, err)
	}
	return printOK(a, out)
}

// overrides parses the given flag values into a partial edit.
func (c *EditCmd) overrides() (service.Patch, error) {
	var p service.Patch
	if c.title.set {
		p.Title = &c.title.val
	}
	if c.priority.set {
		pr, err := service.ParsePriority(c.priority.val)
		if err != nil {
			return service.Patch{}, err
		}
		p.Priority = &pr
	}
	if c.due.set {
		due, err := parseDue(c.due.val)
		if err != nil {
			return service.Patch{}, err
		}
		p.DueDate = due
	}
	if c.completed.set {
		p.Completed = &c.completed.val
	}
	return p, nil
}

// apply builds the full field set from task and the overrides.
func (c *EditCmd) apply(task service.Task, p service.Patch) service.Edit {
	ed := service.Edit{
		Title:     task.Title,
		DueDate:   task.DueDate,
		Priority:  task.Priority,
		Completed: task.Completed,
	}
	if p.Title != nil {
		ed.Title = *p.Title
	}
	if p.Priority != nil {
		ed.Priority = *p.Priority
	}
	if p.DueDate != nil {
		ed.DueDate = p.DueDate
	}
	if c.noDue {
		ed.DueDate = nil
	}
	if p.Completed != nil {
		ed.Completed = *p.Completed
	}
	return ed
}
