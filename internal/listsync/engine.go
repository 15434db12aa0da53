// Package listsync holds the displayed page of tasks and keeps it in step
// with the server. Mutations are sent through a service.Service and
// reconciled by refetching the current page.
package listsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"todo/internal/filter"
	"todo/internal/service"
)

// maxErrors bounds the error list kept for display.
const maxErrors = 20

// ErrDeclined is returned when a destructive operation was not confirmed.
var ErrDeclined = errors.New("cancelled")

// ErrUnknownTask is returned for an id that is not on the current page.
var ErrUnknownTask = errors.New("task not on current page")

// ConfirmFunc asks the user to approve a destructive operation.
type ConfirmFunc func(prompt string) bool

// Snapshot is the displayed page.
type Snapshot struct {
	Tasks      []service.Task
	Pagination service.Pagination

	// Query is the selection the page was fetched for.
	Query service.Query

	// Loaded is false until the first successful fetch.
	Loaded bool
}

// Task returns the task with id and whether it is on the page.
func (s Snapshot) Task(id service.TaskID) (service.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// IDs returns the task ids in display order.
func (s Snapshot) IDs() []service.TaskID {
	ids := make([]service.TaskID, len(s.Tasks))
	for i, t := range s.Tasks {
		ids[i] = t.ID
	}
	return ids
}

func (s Snapshot) clone() Snapshot {
	s.Tasks = append([]service.Task(nil), s.Tasks...)
	return s
}

// Engine owns the snapshot.
type Engine struct {
	svc     service.Service
	filters *filter.State
	logger  *zap.Logger

	mu        sync.Mutex
	snap      Snapshot
	fetched   Snapshot // last page as returned by the server
	seq       uint64   // id of the latest issued fetch
	errs      []error
	listeners []func(Snapshot)
}

// New creates an Engine reading its selection from filters.
func New(svc service.Service, filters *filter.State, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{svc: svc, filters: filters, logger: logger}
}

// Snapshot returns a copy of the displayed page.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.clone()
}

// Filters returns the selection the engine fetches with.
func (e *Engine) Filters() *filter.State {
	return e.filters
}

// OnChange registers fn to receive every new snapshot.
// fn runs without the engine lock held.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Errors returns the recorded operation failures, oldest first.
func (e *Engine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// DrainErrors returns and clears the recorded failures.
func (e *Engine) DrainErrors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := e.errs
	e.errs = nil
	return errs
}

// Reset drops the snapshot and recorded errors. Fetches still in flight
// are discarded when they complete.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.seq++
	e.snap = Snapshot{}
	e.fetched = Snapshot{}
	e.errs = nil
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	notify(listeners, Snapshot{})
}

// Fetch loads the page selected by the filter state and replaces the
// snapshot with it. A response for a selection that is no longer current,
// or that was overtaken by a later fetch, is dropped and nil returned
// unless the session expired meanwhile. On failure the snapshot is kept.
func (e *Engine) Fetch(ctx context.Context) error {
	q := e.filters.Query()

	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	start := time.Now()
	page, err := e.svc.ListTasks(ctx, q)

	e.mu.Lock()
	if seq != e.seq || q != e.filters.Query() {
		e.mu.Unlock()
		if service.IsKind(err, service.KindSessionExpired) {
			return err
		}
		e.logger.Debug("discarding stale page",
			zap.Uint64("seq", seq),
			zap.Int("page", q.Page),
			zap.String("search", q.Search),
		)
		return nil
	}
	if err != nil {
		e.recordLocked(err)
		e.mu.Unlock()
		e.logger.Warn("fetching tasks failed", zap.Error(err))
		return err
	}
	snap := Snapshot{
		Tasks:      append([]service.Task(nil), page.Tasks...),
		Pagination: page.Pagination,
		Query:      q,
		Loaded:     true,
	}
	e.snap = snap
	e.fetched = snap.clone()
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	e.logger.Debug("tasks fetched",
		zap.Int("count", len(page.Tasks)),
		zap.Int("page", page.Pagination.CurrentPage),
		zap.Duration("elapsed", time.Since(start)),
	)
	notify(listeners, snap.clone())
	return nil
}

// ApplyFilters updates the selection and fetches when it changed.
func (e *Engine) ApplyFilters(ctx context.Context, p filter.Patch) error {
	if !e.filters.Update(p) {
		return nil
	}
	return e.Fetch(ctx)
}

// GoToPage selects page n and fetches it.
func (e *Engine) GoToPage(ctx context.Context, n int) error {
	e.filters.SetPage(n)
	return e.Fetch(ctx)
}

// Create submits d and refetches the current page on success.
// An empty title is rejected without a request.
func (e *Engine) Create(ctx context.Context, d service.Draft) (service.Task, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return service.Task{}, service.Validation("title", "title is required")
	}
	d.Priority = d.Priority.OrDefault()

	task, err := e.svc.CreateTask(ctx, d)
	if err != nil {
		e.record(err)
		return service.Task{}, err
	}
	return task, e.Fetch(ctx)
}

// Toggle flips the completion of the task with id, patches the server and
// then refetches the current page whatever the patch outcome.
func (e *Engine) Toggle(ctx context.Context, id service.TaskID) error {
	e.mu.Lock()
	idx := -1
	for i, t := range e.snap.Tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return ErrUnknownTask
	}
	completed := !e.snap.Tasks[idx].Completed
	e.snap.Tasks = append([]service.Task(nil), e.snap.Tasks...)
	e.snap.Tasks[idx].Completed = completed
	optimistic := e.snap.clone()
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	notify(listeners, optimistic)

	_, err := e.svc.PatchTask(ctx, id, service.Patch{Completed: &completed})
	if err != nil {
		e.record(err)
		if service.IsKind(err, service.KindSessionExpired) {
			return err
		}
	}
	if ferr := e.Fetch(ctx); err == nil {
		err = ferr
	}
	return err
}

// Edit submits the full edited field set of the task with id and refetches
// on success. On failure the snapshot is untouched and the returned
// *service.Error carries any field errors.
func (e *Engine) Edit(ctx context.Context, id service.TaskID, ed service.Edit) (service.Task, error) {
	ed.Title = strings.TrimSpace(ed.Title)
	if ed.Title == "" {
		return service.Task{}, service.Validation("title", "title is required")
	}
	ed.Priority = ed.Priority.OrDefault()

	task, err := e.svc.EditTask(ctx, id, ed)
	if err != nil {
		e.record(err)
		return service.Task{}, err
	}
	return task, e.Fetch(ctx)
}

// Delete removes the task with id after confirm approves. If the deleted
// task was the only one on a page past the first, page 1 is fetched next.
func (e *Engine) Delete(ctx context.Context, id service.TaskID, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("Are you sure you want to delete this task?") {
		return ErrDeclined
	}
	if err := e.svc.DeleteTask(ctx, id); err != nil {
		e.record(err)
		return err
	}

	snap := e.Snapshot()
	if q := e.filters.Query(); q.Page > 1 && len(snap.Tasks) <= 1 {
		e.filters.SetPage(1)
	}
	return e.Fetch(ctx)
}

// ClearCompleted removes every completed task after confirm approves.
func (e *Engine) ClearCompleted(ctx context.Context, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("Are you sure you want to clear all completed tasks?") {
		return ErrDeclined
	}
	if err := e.svc.ClearCompleted(ctx); err != nil {
		e.record(err)
		return err
	}
	return e.Fetch(ctx)
}

// Reorder takes ids as the displayed order, reprojects the snapshot to it
// and persists it. Ids not on the page are dropped and page tasks missing
// from ids keep their relative order after the given ones. On failure the
// last fetched order is restored and the page refetched.
func (e *Engine) Reorder(ctx context.Context, ids []service.TaskID) error {
	e.mu.Lock()
	byID := make(map[service.TaskID]service.Task, len(e.snap.Tasks))
	for _, t := range e.snap.Tasks {
		byID[t.ID] = t
	}
	ordered := make([]service.Task, 0, len(ids))
	order := make([]service.TaskID, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		ordered = append(ordered, t)
		order = append(order, id)
	}
	for _, t := range e.snap.Tasks {
		if _, left := byID[t.ID]; left {
			ordered = append(ordered, t)
			order = append(order, t.ID)
		}
	}
	e.snap.Tasks = ordered
	reprojected := e.snap.clone()
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	notify(listeners, reprojected)

	err := e.svc.Reorder(ctx, order)
	if err == nil {
		return nil
	}
	e.record(err)
	if service.IsKind(err, service.KindSessionExpired) {
		return err
	}

	e.mu.Lock()
	e.snap = e.fetched.clone()
	restored := e.snap.clone()
	e.mu.Unlock()
	notify(listeners, restored)

	if ferr := e.Fetch(ctx); ferr != nil {
		e.logger.Warn("refetch after failed reorder", zap.Error(ferr))
	}
	return err
}

func (e *Engine) record(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordLocked(err)
}

// recordLocked keeps err for display. Session expiry is handled by the
// session owner and not listed.
func (e *Engine) recordLocked(err error) {
	if service.IsKind(err, service.KindSessionExpired) || service.IsKind(err, service.KindValidation) {
		return
	}
	e.errs = append(e.errs, err)
	if len(e.errs) > maxErrors {
		e.errs = e.errs[len(e.errs)-maxErrors:]
	}
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
