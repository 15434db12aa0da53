package listsync_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"todo/internal/filter"
	"todo/internal/listsync"
	"todo/internal/service"
	"todo/internal/testutil"
)

func newEngine(t *testing.T) (*listsync.Engine, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	return listsync.New(svc, filter.New(nil, nil), nil), svc
}

func titles(s listsync.Snapshot) []string {
	out := make([]string, len(s.Tasks))
	for i, task := range s.Tasks {
		out[i] = task.Title
	}
	return out
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func strp(s string) *string { return &s }

func TestFetch_ReplacesSnapshotAndNotifies(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("a", false)
	svc.AddTask("b", true)

	var seen []listsync.Snapshot
	e.OnChange(func(s listsync.Snapshot) { seen = append(seen, s) })

	if err := e.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	snap := e.Snapshot()
	if !snap.Loaded || !reflect.DeepEqual(titles(snap), []string{"a", "b"}) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Pagination.CurrentPage != 1 || snap.Pagination.TotalPages != 1 {
		t.Errorf("unexpected pagination %+v", snap.Pagination)
	}
	if len(seen) != 1 {
		t.Errorf("expected one notification, got %d", len(seen))
	}
}

func TestFetch_FailureKeepsSnapshot(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("a", false)
	_ = e.Fetch(context.Background())

	svc.ListTasksErr = service.Transport(errors.New("connection refused"))
	if err := e.Fetch(context.Background()); !errors.Is(err, service.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("snapshot should survive a failed fetch, got %v", got)
	}
	if errs := e.Errors(); len(errs) != 1 {
		t.Errorf("expected one recorded error, got %v", errs)
	}
	if errs := e.DrainErrors(); len(errs) != 1 || len(e.Errors()) != 0 {
		t.Error("drain should return and clear errors")
	}
}

func TestFetch_StaleResponseIsDiscarded(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("slow result", false)
	svc.AddTask("fast result", false)

	started := make(chan struct{})
	release := make(chan struct{})
	svc.BeforeList = func(q service.Query) {
		if q.Search == "slow" {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- e.ApplyFilters(context.Background(), filter.Patch{Search: strp("slow")})
	}()
	<-started

	if err := e.ApplyFilters(context.Background(), filter.Patch{Search: strp("fast")}); err != nil {
		t.Fatalf("fast fetch: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale fetch should not fail, got %v", err)
	}

	snap := e.Snapshot()
	if snap.Query.Search != "fast" || !reflect.DeepEqual(titles(snap), []string{"fast result"}) {
		t.Errorf("expected the later selection to win, got %q %v", snap.Query.Search, titles(snap))
	}
}

func TestFetch_StaleFailureIsNotRecorded(t *testing.T) {
	e, svc := newEngine(t)
	started := make(chan struct{})
	release := make(chan struct{})
	svc.BeforeList = func(q service.Query) {
		if q.Page == 2 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- e.GoToPage(context.Background(), 2) }()
	<-started
	_ = e.GoToPage(context.Background(), 1)

	svc.ListTasksErr = errors.New("boom")
	close(release)
	<-done
	if n := len(e.Errors()); n != 0 {
		t.Errorf("stale failure should be dropped, got %d errors", n)
	}
}

func TestCreate_EmptyTitleSendsNothing(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("a", false)
	_ = e.Fetch(context.Background())
	before := e.Snapshot()
	calls := svc.TotalCalls()

	_, err := e.Create(context.Background(), service.Draft{Title: "   "})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.TotalCalls() != calls {
		t.Error("empty title must not reach the service")
	}
	if !reflect.DeepEqual(e.Snapshot(), before) {
		t.Error("snapshot must be unchanged")
	}
}

func TestCreate_RefetchesAndDefaultsPriority(t *testing.T) {
	e, svc := newEngine(t)
	task, err := e.Create(context.Background(), service.Draft{Title: " Buy milk "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "Buy milk" || task.Priority != service.PriorityMedium {
		t.Errorf("unexpected task %+v", task)
	}
	if svc.Calls("ListTasks") != 1 {
		t.Error("expected a refetch after create")
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"Buy milk"}) {
		t.Errorf("unexpected snapshot %v", got)
	}
}

func TestCreate_FailureKeepsSnapshot(t *testing.T) {
	e, svc := newEngine(t)
	svc.CreateTaskErr = service.RequestFailed("failed to add task", 400, []byte(`{"title":["too long"]}`))

	_, err := e.Create(context.Background(), service.Draft{Title: "x"})
	var svcErr *service.Error
	if !errors.As(err, &svcErr) || len(svcErr.Fields["title"]) != 1 {
		t.Fatalf("expected field error, got %v", err)
	}
	if svc.Calls("ListTasks") != 0 {
		t.Error("failed create must not refetch")
	}
}

func TestToggle_RoundTrip(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())

	if err := e.Toggle(context.Background(), task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got, _ := e.Snapshot().Task(task.ID); !got.Completed {
		t.Error("expected completed after first toggle")
	}
	if err := e.Toggle(context.Background(), task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got, _ := e.Snapshot().Task(task.ID); got.Completed {
		t.Error("expected not completed after second toggle")
	}
	if n := svc.Calls("ListTasks"); n != 3 {
		t.Errorf("expected a refetch after each toggle, got %d fetches", n)
	}
}

func TestToggle_OptimisticFlipThenReconcile(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())
	svc.PatchTaskErr = service.RequestFailed("failed to update task", 500, nil)

	var seen []bool
	e.OnChange(func(s listsync.Snapshot) {
		got, _ := s.Task(task.ID)
		seen = append(seen, got.Completed)
	})

	err := e.Toggle(context.Background(), task.ID)
	if !errors.Is(err, service.ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if !reflect.DeepEqual(seen, []bool{true, false}) {
		t.Errorf("expected optimistic flip then server truth, got %v", seen)
	}
	if got, _ := e.Snapshot().Task(task.ID); got.Completed {
		t.Error("refetch should have restored the server state")
	}
}

func TestToggle_UnknownID(t *testing.T) {
	e, svc := newEngine(t)
	if err := e.Toggle(context.Background(), "42"); !errors.Is(err, listsync.ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
	if svc.TotalCalls() != 0 {
		t.Error("unknown id must not reach the service")
	}
}

func TestEdit_EmptyTitleSendsNothing(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())
	calls := svc.TotalCalls()

	_, err := e.Edit(context.Background(), task.ID, service.Edit{Title: ""})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.TotalCalls() != calls {
		t.Error("empty title must not reach the service")
	}
}

func TestEdit_SuccessAndFailure(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())

	if _, err := e.Edit(context.Background(), task.ID, service.Edit{Title: "b", Priority: service.PriorityUrgent}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, _ := e.Snapshot().Task(task.ID)
	if got.Title != "b" || got.Priority != service.PriorityUrgent {
		t.Errorf("unexpected task after edit %+v", got)
	}

	svc.EditTaskErr = service.RequestFailed("failed to save task", 400, []byte(`{"due_date":["bad date"]}`))
	_, err := e.Edit(context.Background(), task.ID, service.Edit{Title: "c"})
	var svcErr *service.Error
	if !errors.As(err, &svcErr) || len(svcErr.Fields["due_date"]) != 1 {
		t.Fatalf("expected field error, got %v", err)
	}
	if got, _ := e.Snapshot().Task(task.ID); got.Title != "b" {
		t.Errorf("failed edit must not change the snapshot, got %q", got.Title)
	}
}

func TestReorder_Idempotent(t *testing.T) {
	e, svc := newEngine(t)
	a := svc.AddTask("a", false)
	b := svc.AddTask("b", false)
	c := svc.AddTask("c", false)
	_ = e.Fetch(context.Background())

	order := []service.TaskID{c.ID, a.ID, b.ID}
	for i := 0; i < 2; i++ {
		if err := e.Reorder(context.Background(), order); err != nil {
			t.Fatalf("reorder %d: %v", i, err)
		}
		if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
			t.Errorf("reorder %d: unexpected order %v", i, got)
		}
	}
	if n := svc.Calls("ListTasks"); n != 1 {
		t.Errorf("successful reorder must not refetch, got %d fetches", n)
	}
	for _, sent := range svc.Orders() {
		if !reflect.DeepEqual(sent, order) {
			t.Errorf("expected full sequence %v, sent %v", order, sent)
		}
	}
}

func TestReorder_DropsUnknownIDs(t *testing.T) {
	e, svc := newEngine(t)
	a := svc.AddTask("a", false)
	b := svc.AddTask("b", false)
	_ = e.Fetch(context.Background())

	if err := e.Reorder(context.Background(), []service.TaskID{b.ID, "999", a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("unexpected order %v", got)
	}
	if sent := svc.Orders()[0]; !reflect.DeepEqual(sent, []service.TaskID{b.ID, a.ID}) {
		t.Errorf("unexpected sequence sent %v", sent)
	}
}

func TestReorder_PartialSequenceKeepsRemainingTasks(t *testing.T) {
	e, svc := newEngine(t)
	a := svc.AddTask("a", false)
	b := svc.AddTask("b", false)
	c := svc.AddTask("c", false)
	_ = e.Fetch(context.Background())

	if err := e.Reorder(context.Background(), []service.TaskID{c.ID, a.ID, "999"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("expected unlisted task after the given ones, got %v", got)
	}
	want := []service.TaskID{c.ID, a.ID, b.ID}
	if sent := svc.Orders()[0]; !reflect.DeepEqual(sent, want) {
		t.Errorf("expected full sequence %v, sent %v", want, sent)
	}
	if n := svc.Calls("ListTasks"); n != 1 {
		t.Errorf("successful reorder must not refetch, got %d fetches", n)
	}
}

func TestReorder_FailureRestoresFetchedOrder(t *testing.T) {
	e, svc := newEngine(t)
	a := svc.AddTask("a", false)
	b := svc.AddTask("b", false)
	_ = e.Fetch(context.Background())

	svc.ReorderErr = service.RequestFailed("failed to reorder tasks", 400, []byte(`{"error":"bad ids"}`))
	svc.ListTasksErr = errors.New("offline")

	err := e.Reorder(context.Background(), []service.TaskID{b.ID, a.ID})
	if !errors.Is(err, service.ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected last fetched order, got %v", got)
	}
	if n := svc.Calls("ListTasks"); n != 2 {
		t.Errorf("expected a refetch after failed reorder, got %d fetches", n)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())

	for name, confirm := range map[string]listsync.ConfirmFunc{"declined": no, "nil": nil} {
		if err := e.Delete(context.Background(), task.ID, confirm); !errors.Is(err, listsync.ErrDeclined) {
			t.Errorf("%s: expected ErrDeclined, got %v", name, err)
		}
	}
	if svc.Calls("DeleteTask") != 0 {
		t.Error("unconfirmed delete must not reach the service")
	}
}

func TestDelete_LastTaskOnLastPageFetchesFirstPage(t *testing.T) {
	e, svc := newEngine(t)
	svc.PageSize = 2
	svc.AddTask("a", false)
	svc.AddTask("b", false)
	last := svc.AddTask("c", false)
	if err := e.GoToPage(context.Background(), 2); err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if snap := e.Snapshot(); len(snap.Tasks) != 1 || snap.Pagination.TotalPages != 2 {
		t.Fatalf("expected one task on page 2 of 2, got %+v", snap)
	}

	if err := e.Delete(context.Background(), last.ID, yes); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := e.Snapshot()
	if snap.Query.Page != 1 || snap.Pagination.CurrentPage != 1 {
		t.Errorf("expected page 1, got query %d pagination %d", snap.Query.Page, snap.Pagination.CurrentPage)
	}
	if !reflect.DeepEqual(titles(snap), []string{"a", "b"}) {
		t.Errorf("unexpected tasks %v", titles(snap))
	}
}

func TestDelete_KeepsPageWhenOthersRemain(t *testing.T) {
	e, svc := newEngine(t)
	svc.PageSize = 2
	svc.AddTask("a", false)
	svc.AddTask("b", false)
	c := svc.AddTask("c", false)
	svc.AddTask("d", false)
	_ = e.GoToPage(context.Background(), 2)

	if err := e.Delete(context.Background(), c.ID, yes); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := e.Snapshot().Query.Page; got != 2 {
		t.Errorf("expected to stay on page 2, got %d", got)
	}
}

func TestDelete_FailureKeepsSnapshot(t *testing.T) {
	e, svc := newEngine(t)
	task := svc.AddTask("a", false)
	_ = e.Fetch(context.Background())
	svc.DeleteTaskErr = service.RequestFailed("failed to delete task", 404, []byte(`{"detail":"Not found."}`))

	if err := e.Delete(context.Background(), task.ID, yes); !errors.Is(err, service.ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if _, ok := e.Snapshot().Task(task.ID); !ok {
		t.Error("snapshot must keep the task after a failed delete")
	}
	if svc.Calls("ListTasks") != 1 {
		t.Error("failed delete must not refetch")
	}
}

func TestClearCompleted(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("a", true)
	svc.AddTask("b", false)
	_ = e.Fetch(context.Background())

	if err := e.ClearCompleted(context.Background(), no); !errors.Is(err, listsync.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if err := e.ClearCompleted(context.Background(), yes); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := titles(e.Snapshot()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("unexpected tasks %v", got)
	}
}

func TestReset_DropsSnapshotAndErrors(t *testing.T) {
	e, svc := newEngine(t)
	svc.AddTask("a", false)
	_ = e.Fetch(context.Background())
	svc.ListTasksErr = errors.New("boom")
	_ = e.Fetch(context.Background())

	e.Reset()
	if snap := e.Snapshot(); snap.Loaded || len(snap.Tasks) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if len(e.Errors()) != 0 {
		t.Error("expected errors cleared")
	}
}

func TestErrors_SessionExpiryIsNotListed(t *testing.T) {
	e, svc := newEngine(t)
	svc.ListTasksErr = service.SessionExpired(nil)
	_ = e.Fetch(context.Background())
	if n := len(e.Errors()); n != 0 {
		t.Errorf("expected no listed errors, got %d", n)
	}
}
