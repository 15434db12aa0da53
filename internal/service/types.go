// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TaskID is the opaque server-assigned task identifier.
// The API emits integer ids; the client never interprets them.
type TaskID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid task id: %s", data)
	}
	*id = TaskID(n.String())
	return nil
}

// Priority is the wire code of a task priority.
type Priority string

const (
	PriorityUrgent Priority = "U"
	PriorityHigh   Priority = "H"
	PriorityMedium Priority = "M"
	PriorityLow    Priority = "L"
)

// Priorities lists all priorities from most to least important.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// OrDefault returns Medium for an empty or unknown priority.
func (p Priority) OrDefault() Priority {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// Label returns the display name of the priority.
func (p Priority) Label() string {
	switch p.OrDefault() {
	case PriorityUrgent:
		return "Urgent"
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return "Medium"
	}
}

// ParsePriority accepts a wire code or a label, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority: %s", s)
}

// Task represents a single task item.
type Task struct {
	ID        TaskID     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	DueDate   *time.Time `json:"due_date"`
	Priority  Priority   `json:"priority"`
	Order     int        `json:"order,omitempty"`
}

// UnmarshalJSON decodes a task from the wire. A due date without a zone
// offset is read in local time; one that does not parse at all is dropped
// instead of failing the task.
func (t *Task) UnmarshalJSON(data []byte) error {
	type wire Task
	var raw struct {
		wire
		DueDate json.RawMessage `json:"due_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.wire)
	t.DueDate = decodeDueDate(raw.DueDate)
	return nil
}

var localDueLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func decodeDueDate(data json.RawMessage) *time.Time {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil || s == "" {
		return nil
	}
	if due, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &due
	}
	for _, layout := range localDueLayouts {
		if due, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &due
		}
	}
	return nil
}

// Pagination is the page metadata returned alongside a task page.
type Pagination struct {
	Count       int  `json:"count"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// Page is one page of tasks plus its metadata.
type Page struct {
	Tasks      []Task
	Pagination Pagination
}

// Status values accepted by the status filter.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

// PriorityAll disables priority filtering.
const PriorityAll = "all"

// Query selects a filtered page of tasks.
type Query struct {
	Search   string
	Status   string
	Priority string
	Page     int
}

// Values encodes the query the way the list endpoint expects it.
// "all" filters and an empty search are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" && q.Status != StatusAll {
		v.Set("status", q.Status)
	}
	if q.Priority != "" && q.Priority != PriorityAll {
		v.Set("priority", q.Priority)
	}
	return v
}

// Draft holds the fields of a task to be created.
type Draft struct {
	Title    string     `json:"title"`
	DueDate  *time.Time `json:"due_date"`
	Priority Priority   `json:"priority"`
}

// Edit is the full edited field set submitted by the edit surface.
// DueDate is always sent; nil clears it on the server.
type Edit struct {
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date"`
	Priority  Priority   `json:"priority"`
	Completed bool       `json:"completed"`
}

// Patch is a partial update. Only non-nil fields are sent.
type Patch struct {
	Title     *string    `json:"title,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// User is the authenticated account as known to the client.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}
