// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	"todo/internal/app"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a session.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// a is nil for Standalone commands.
	// args contains positional arguments after flag parsing.
	// in supplies prompted input (passwords, confirmations).
	// Returns exit code.
	Run(ctx context.Context, a *app.App, args []string, in io.Reader, out, errOut io.Writer) int
}

// Standalone is implemented by commands that run without client state,
// so the dispatcher does not open the state store for them.
type Standalone interface {
	Standalone()
}
