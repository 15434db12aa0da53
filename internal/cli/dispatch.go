// Package cli parses the command line and dispatches to registered commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todo/internal/app"
	"todo/internal/commands"
	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/logging"
)

// AppFactory creates the client from config.
// Used to inject the backend during dispatch.
type AppFactory func(ctx context.Context, cfg *config.Config) (*app.App, error)

// DefaultFactory builds the client against the configured API, with state
// in the bbolt file of the config directory and logs on stderr.
func DefaultFactory(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger := logging.New(logging.Config{
		Level:    cfg.EffectiveLogLevel(),
		Encoding: cfg.LogEncoding,
	})
	a, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  AppFactory
}

// NewDispatcher creates a new dispatcher with the given registry and app
// factory. A nil factory selects DefaultFactory.
func NewDispatcher(registry *commands.Registry, factory AppFactory) *Dispatcher {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, in, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], in, out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, in io.Reader, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, in, out, errOut)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configDir string
	quiet     bool
	debug     bool
	noColor   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configDir, "config", "", "")
	fs.BoolVar(&c.quiet, "quiet", false, "")
	fs.BoolVar(&c.debug, "debug", false, "")
	fs.BoolVar(&c.noColor, "no-color", false, "")
}

func (c *commonFlags) config() (*config.Config, error) {
	cfg, err := config.New(c.configDir)
	if err != nil {
		return nil, err
	}
	cfg.Quiet = c.quiet
	cfg.Debug = c.debug
	cfg.NoColor = cfg.NoColor || c.noColor
	return cfg, nil
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var common commonFlags
	common.register(fs)
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(errOut, err)
	}

	// A lone "-" or a flag after "--" is still not a positional argument.
	positional := fs.Args()
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positional[0])
		return exitcode.UserError
	}

	cfg, err := common.config()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	if _, ok := cmd.(commands.Standalone); ok {
		return cmd.Run(ctx, nil, positional, in, out, errOut)
	}

	a, err := d.factory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	defer a.Close()

	if cmd.NeedsAuth() && !a.Authenticated() {
		fmt.Fprintln(errOut, "error: not logged in (run: todo login)")
		return exitcode.AuthError
	}

	return cmd.Run(ctx, a, positional, in, out, errOut)
}

// flagError reports a flag parsing failure.
func flagError(errOut io.Writer, err error) int {
	errStr := err.Error()

	// Check for missing flag value
	if strings.HasPrefix(errStr, "flag needs an argument:") {
		flagName := strings.TrimSpace(strings.TrimPrefix(errStr, "flag needs an argument:"))
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagName)
		return exitcode.UserError
	}

	// Check for unknown flag
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}
