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
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Remove stored credentials" }
func (c *LogoutCmd) Usage() string     { return "todo logout [common flags]" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	quiet := a.Config().Quiet
	if !a.Authenticated() {
		if !quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	a.Logout()

	if !quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
