package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"todo/internal/app"
	"todo/internal/exitcode"
)

// Version is overridden with -ldflags "-X todo/internal/commands.Version=...".
var Version = "0.1.0"

func init() {
	Register(&VersionCmd{})
}

// VersionCmd prints the client version, and with --verbose the toolchain
// and VCS state it was built from.
type VersionCmd struct {
	verbose bool
}

func (c *VersionCmd) Name() string      { return "version" }
func (c *VersionCmd) Aliases() []string { return nil }
func (c *VersionCmd) Synopsis() string  { return "Print version" }
func (c *VersionCmd) Usage() string     { return "todo version [--verbose]" }
func (c *VersionCmd) NeedsAuth() bool   { return false }
func (c *VersionCmd) Standalone()       {}

func (c *VersionCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "verbose", false, "")
	fs.BoolVar(&c.verbose, "v", false, "")
}

func (c *VersionCmd) Run(ctx context.Context, _ *app.App, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(errOut, "error: version takes no arguments")
		return exitcode.UserError
	}
	fmt.Fprintf(out, "todo %s\n", Version)
	if !c.verbose {
		return exitcode.Success
	}
	b := readBuild()
	fmt.Fprintf(out, "  go:       %s\n", b.goVersion)
	fmt.Fprintf(out, "  platform: %s\n", b.platform)
	if b.revision != "" {
		rev := b.revision
		if b.modified {
			rev += " (modified)"
		}
		fmt.Fprintf(out, "  revision: %s\n", rev)
	}
	return exitcode.Success
}

type buildDetails struct {
	goVersion string
	platform  string
	revision  string
	modified  bool
}

func readBuild() buildDetails {
	b := buildDetails{
		goVersion: runtime.Version(),
		platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if info.GoVersion != "" {
		b.goVersion = info.GoVersion
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.revision = s.Value
			if len(b.revision) > 12 {
				b.revision = b.revision[:12]
			}
		case "vcs.modified":
			b.modified = s.Value == "true"
		}
	}
	return b
}
