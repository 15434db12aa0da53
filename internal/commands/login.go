package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todo/internal/app"
	"todo/internal/exitcode"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct{}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Log in and load your tasks" }
func (c *LoginCmd) Usage() string     { return "todo login [common flags] [username]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LoginCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	cfg := a.Config()
	if a.Authenticated() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}

	p := newPrompter(in, errOut)
	var username string
	if len(args) == 1 {
		username = args[0]
	} else {
		var err error
		if username, err = p.Line("Username: "); err != nil {
			fmt.Fprintf(errOut, "error: failed to read username: %v\n", err)
			return exitcode.UserError
		}
	}
	password, err := p.Password("Password: ")
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
		return exitcode.UserError
	}

	user, err := a.Login(ctx, strings.TrimSpace(username), password)
	if !a.Authenticated() {
		return report(errOut, err)
	}
	if err != nil {
		fmt.Fprintf(errOut, "warning: logged in but tasks could not be loaded: %s\n", describe(err))
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "logged in as %s\n", user.Username)
	}
	return exitcode.Success
}
