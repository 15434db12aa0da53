package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"todo/internal/listsync"
	"todo/internal/service"
)

// idPrefix marks a task reference by server id.
const idPrefix = "id:"

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int            // 1-based position on the current page, 0 if ID is set
	ID  service.TaskID // server id, from "id:<id>"
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses the first argument as a task reference.
//
// Accepted forms:
//  1. All digits: position of the task on the current page (3)
//  2. "id:" followed by a non-empty id: the task with that server id (id:42)
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	arg := args[0]

	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Num: num}, nil
	}

	if id, ok := strings.CutPrefix(arg, idPrefix); ok && strings.TrimSpace(id) != "" {
		return TaskRef{ID: service.TaskID(strings.TrimSpace(id))}, nil
	}

	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// Resolve finds the referenced task on the displayed page.
func (r TaskRef) Resolve(snap listsync.Snapshot) (service.Task, error) {
	if r.ID != "" {
		task, ok := snap.Task(r.ID)
		if !ok {
			return service.Task{}, fmt.Errorf("task not on current page: %s", r.ID)
		}
		return task, nil
	}
	if r.Num < 1 || r.Num > len(snap.Tasks) {
		return service.Task{}, fmt.Errorf("task number out of range: %d", r.Num)
	}
	return snap.Tasks[r.Num-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
