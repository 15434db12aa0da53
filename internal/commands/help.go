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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "todo help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }
func (c *HelpCmd) Standalone()       {}

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	for _, cmd := range DefaultRegistry.All() {
		name := cmd.Name()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %-18s %s\n", name, cmd.Synopsis())
	}
	return exitcode.Success
}

const helpText = `Usage:
  todo                                     List tasks on the remembered page
  todo list [common flags] [--search <text>] [--status <all|active|completed|overdue>]
            [--priority <all|U|H|M|L>] [--page <n>] [--reset]
  todo add [common flags] [--priority <U|H|M|L>] [--due <date>] <title...>
  todo done [common flags] <ref>
  todo edit [common flags] [--title <title>] [--priority <p>] [--due <date> | --no-due]
            [--completed=<bool>] <ref>
  todo rm [common flags] [--yes] <ref>
  todo clear [common flags] [--yes]
  todo move [common flags] <ref> <position>
  todo login [common flags] [username]
  todo register [common flags] [--email <email>] <username>
  todo logout [common flags]
  todo status [common flags]
  todo help
  todo version

Task references:
  <n>        position on the current page, as shown by list
  id:<id>    server id of a task on the current page

Dates:
  2006-01-02, "2006-01-02 15:04" or RFC 3339, in local time

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
  --no-color       Disable styled output

Environment:
  TODO_API_URL      API base URL (default http://localhost:8000/api)
  TODO_API_TIMEOUT  Request timeout (default 10s)
  LOG_LEVEL         Log level (default warn)
  LOG_ENCODING      console or json
`
