package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"todo/internal/exitcode"
	"todo/internal/listsync"
	"todo/internal/service"
)

// optString is a string flag that records whether it was given.
type optString struct {
	val string
	set bool
}

func (o *optString) String() string { return o.val }

func (o *optString) Set(s string) error {
	o.val = s
	o.set = true
	return nil
}

func (o *optString) ptr() *string {
	if !o.set {
		return nil
	}
	v := o.val
	return &v
}

// optBool is a boolean flag that records whether it was given.
type optBool struct {
	val bool
	set bool
}

func (o *optBool) String() string   { return strconv.FormatBool(o.val) }
func (o *optBool) IsBoolFlag() bool { return true }

func (o *optBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.val = v
	o.set = true
	return nil
}

// dueLayouts are the accepted --due formats, tried in order.
var dueLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseDue parses a due date in local time.
func parseDue(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due date: %s", s)
}

// parsePriorityFilter accepts "all" or a priority code or label.
func parsePriorityFilter(s string) (string, error) {
	if strings.EqualFold(s, service.PriorityAll) {
		return service.PriorityAll, nil
	}
	p, err := service.ParsePriority(s)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// report prints err and returns its exit code.
func report(errOut io.Writer, err error) int {
	if errors.Is(err, listsync.ErrDeclined) {
		fmt.Fprintln(errOut, "cancelled")
		return exitcode.UserError
	}
	fmt.Fprintf(errOut, "error: %s\n", describe(err))
	return exitcode.FromError(err)
}

// describe renders err for the user. Validation errors show their field
// messages only.
func describe(err error) string {
	var e *service.Error
	if errors.As(err, &e) && e.Kind == service.KindValidation {
		if len(e.Fields) > 0 && e.Message == "" {
			return e.FieldSummary()
		}
		return e.Message
	}
	return err.Error()
}
