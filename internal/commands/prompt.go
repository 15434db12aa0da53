package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

// prompter reads answers from the command input. On a terminal passwords
// are read with echo disabled.
type prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = strings.NewReader("")
	}
	return &prompter{in: in, r: bufio.NewReader(in), out: out}
}

// Line prints label and reads one line without its line ending.
func (p *prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password prints label and reads a secret.
func (p *prompter) Password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.Line(label)
}

// Confirm asks a yes/no question. Anything but y or yes declines.
func (p *prompter) Confirm(question string) bool {
	answer, err := p.Line(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
