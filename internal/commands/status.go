package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"todo/internal/app"
	"todo/internal/exitcode"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Show the current session" }
func (c *StatusCmd) Usage() string     { return "todo status [common flags]" }
func (c *StatusCmd) NeedsAuth() bool   { return false }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	st := a.Status()
	if !st.Authenticated {
		fmt.Fprintln(out, "not logged in")
		return exitcode.AuthError
	}

	name := "unknown user"
	if st.User != nil && st.User.Username != "" {
		name = st.User.Username
	}
	fmt.Fprintf(out, "logged in as %s\n", name)
	fmt.Fprintf(out, "server: %s\n", a.Config().APIURL)
	if !st.Expiry.IsZero() {
		verb := "expires"
		if st.Expiry.Before(time.Now()) {
			verb = "expired"
		}
		fmt.Fprintf(out, "access token %s %s (renewed automatically)\n", verb, st.Expiry.Local().Format(time.RFC3339))
	}
	return exitcode.Success
}
