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
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	email string
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return nil }
func (c *RegisterCmd) Synopsis() string  { return "Create an account" }
func (c *RegisterCmd) Usage() string     { return "todo register [common flags] [--email <email>] <username>" }
func (c *RegisterCmd) NeedsAuth() bool   { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(errOut, "error: username required")
		return exitcode.UserError
	}

	p := newPrompter(in, errOut)
	password, err := p.Password("Password: ")
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
		return exitcode.UserError
	}
	confirm, err := p.Password("Confirm password: ")
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
		return exitcode.UserError
	}

	user, err := a.Register(ctx, strings.TrimSpace(args[0]), c.email, password, confirm)
	if err != nil {
		return report(errOut, err)
	}

	if !a.Config().Quiet {
		fmt.Fprintf(out, "registered %s (run: todo login)\n", user.Username)
	}
	return exitcode.Success
}
