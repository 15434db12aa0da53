package commands

import (
	"context"
	"fmt"
	"io"

	"todo/internal/app"
	"todo/internal/exitcode"
	"todo/internal/service"
)

// resolveTask loads the remembered page and finds the task referenced by
// args[0]. On failure it returns a non-zero exit code after printing.
func resolveTask(ctx context.Context, a *app.App, args []string, errOut io.Writer) (service.Task, int) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	if err := a.Start(ctx); err != nil {
		return service.Task{}, report(errOut, err)
	}
	task, err := ref.Resolve(a.Engine().Snapshot())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	return task, exitcode.Success
}

// printOK prints the success marker unless quiet.
func printOK(a *app.App, out io.Writer) int {
	if !a.Config().Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
