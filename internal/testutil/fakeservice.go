// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"todo/internal/service"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("not found")

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu     sync.Mutex
	tasks  []service.Task
	nextID int
	calls  map[string]int
	orders [][]service.TaskID

	// PageSize defaults to FakePageSize.
	PageSize int

	// Error injection for testing
	ListTasksErr      error
	CreateTaskErr     error
	PatchTaskErr      error
	EditTaskErr       error
	DeleteTaskErr     error
	ClearCompletedErr error
	ReorderErr        error

	// BeforeList runs before a list query is answered, outside the lock.
	// Tests use it to hold back or reorder responses.
	BeforeList func(q service.Query)
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{nextID: 1, calls: make(map[string]int)}
}

// AddTask stores a task and returns it with its assigned id.
func (f *FakeService) AddTask(title string, completed bool) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{
		ID:        service.TaskID(strconv.Itoa(f.nextID)),
		Title:     title,
		Completed: completed,
		Priority:  service.PriorityMedium,
		Order:     len(f.tasks),
	}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t
}

// Tasks returns the stored tasks in order.
func (f *FakeService) Tasks() []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedLocked()
}

// Calls returns how many times method was invoked.
func (f *FakeService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *FakeService) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Orders returns every id sequence passed to Reorder.
func (f *FakeService) Orders() [][]service.TaskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]service.TaskID(nil), f.orders...)
}

func (f *FakeService) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, q service.Query) (service.Page, error) {
	f.count("ListTasks")
	if f.BeforeList != nil {
		f.BeforeList(q)
	}
	if f.ListTasksErr != nil {
		return service.Page{}, f.ListTasksErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []service.Task
	for _, t := range f.sortedLocked() {
		if q.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q.Search)) {
			continue
		}
		if q.Priority != "" && q.Priority != service.PriorityAll && string(t.Priority) != q.Priority {
			continue
		}
		switch q.Status {
		case service.StatusActive:
			if t.Completed {
				continue
			}
		case service.StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		matched = append(matched, t)
	}

	size := f.PageSize
	if size <= 0 {
		size = FakePageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	total := (len(matched) + size - 1) / size
	if total == 0 {
		total = 1
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return service.Page{
		Tasks: append([]service.Task(nil), matched[start:end]...),
		Pagination: service.Pagination{
			Count:       len(matched),
			CurrentPage: page,
			TotalPages:  total,
			HasNext:     page < total,
			HasPrev:     page > 1,
		},
	}, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, d service.Draft) (service.Task, error) {
	f.count("CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{
		ID:       service.TaskID(strconv.Itoa(f.nextID)),
		Title:    d.Title,
		DueDate:  d.DueDate,
		Priority: d.Priority.OrDefault(),
		Order:    len(f.tasks),
	}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t, nil
}

// PatchTask implements service.Service.
func (f *FakeService) PatchTask(ctx context.Context, id service.TaskID, p service.Patch) (service.Task, error) {
	f.count("PatchTask")
	if f.PatchTaskErr != nil {
		return service.Task{}, f.PatchTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, ErrNotFound
	}
	t := &f.tasks[i]
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return *t, nil
}

// EditTask implements service.Service.
func (f *FakeService) EditTask(ctx context.Context, id service.TaskID, e service.Edit) (service.Task, error) {
	f.count("EditTask")
	if f.EditTaskErr != nil {
		return service.Task{}, f.EditTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, ErrNotFound
	}
	t := &f.tasks[i]
	t.Title = e.Title
	t.DueDate = e.DueDate
	t.Priority = e.Priority.OrDefault()
	t.Completed = e.Completed
	return *t, nil
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id service.TaskID) error {
	f.count("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

// ClearCompleted implements service.Service.
func (f *FakeService) ClearCompleted(ctx context.Context) error {
	f.count("ClearCompleted")
	if f.ClearCompletedErr != nil {
		return f.ClearCompletedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return nil
}

// Reorder implements service.Service.
func (f *FakeService) Reorder(ctx context.Context, ids []service.TaskID) error {
	f.count("Reorder")
	f.mu.Lock()
	f.orders = append(f.orders, append([]service.TaskID(nil), ids...))
	f.mu.Unlock()
	if f.ReorderErr != nil {
		return f.ReorderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for pos, id := range ids {
		if i := f.indexLocked(id); i >= 0 {
			f.tasks[i].Order = pos
		}
	}
	return nil
}

func (f *FakeService) indexLocked(id service.TaskID) int {
	for i, t := range f.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeService) sortedLocked() []service.Task {
	out := append([]service.Task(nil), f.tasks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
