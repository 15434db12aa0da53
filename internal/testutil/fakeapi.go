package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"todo/internal/service"
)

// FakePageSize is the page size used by FakeAPI.
const FakePageSize = 10

// FakeAPI is an in-process HTTP server speaking the task API. It keeps
// users, tokens and tasks in memory and records every request it serves.
type FakeAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[string]string
	access   map[string]string // access token -> username
	refresh  map[string]string // refresh token -> username
	tasks    []service.Task
	nextID   int
	tokenSeq int
	requests []string

	refreshCalls int

	// RefreshDelay delays refresh responses so concurrent callers overlap.
	RefreshDelay time.Duration

	// RotateRefresh makes the refresh endpoint return a new refresh token.
	RotateRefresh bool

	// Fail maps "METHOD /path/" to a status code answered instead of the
	// real handler. Paths are relative to the API base.
	Fail map[string]int

	// dropped keys have their connection closed without a response.
	dropped map[string]bool

	// ListDelay is applied to task list requests matching the search term.
	ListDelay map[string]time.Duration

	// Now is the clock used for the overdue filter.
	Now func() time.Time
}

// NewFakeAPI starts a FakeAPI. Close it with t.Cleanup(api.Close).
func NewFakeAPI() *FakeAPI {
	f := &FakeAPI{
		users:     make(map[string]string),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		nextID:    1,
		Fail:      make(map[string]int),
		dropped:   make(map[string]bool),
		ListDelay: make(map[string]time.Duration),
		Now:       time.Now,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Drop makes requests to key ("METHOD /path/") fail at the connection
// level until Drop is called again with drop false.
func (f *FakeAPI) Drop(key string, drop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if drop {
		f.dropped[key] = true
	} else {
		delete(f.dropped, key)
	}
}

// URL returns the API base URL.
func (f *FakeAPI) URL() string {
	return f.Server.URL + "/api"
}

// Close shuts the server down.
func (f *FakeAPI) Close() {
	f.Server.Close()
}

// AddUser registers an account.
func (f *FakeAPI) AddUser(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
}

// AddTask stores a task and returns it with its assigned id and order.
func (f *FakeAPI) AddTask(task service.Task) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addTaskLocked(task)
}

// Tasks returns all stored tasks in server order.
func (f *FakeAPI) Tasks() []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.Task, len(f.tasks))
	copy(out, f.tasks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Issue mints a token pair for username, as a successful login would.
func (f *FakeAPI) Issue(username string) (access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(username)
}

// ExpireAccess invalidates every access token while keeping refresh tokens.
func (f *FakeAPI) ExpireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]string)
}

// RevokeRefresh invalidates every refresh token.
func (f *FakeAPI) RevokeRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = make(map[string]string)
}

// RefreshCalls returns how many refresh requests were served.
func (f *FakeAPI) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// Requests returns "METHOD /path/" for every request served, in order.
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests returns how many served requests match "METHOD /path/".
func (f *FakeAPI) CountRequests(key string) int {
	n := 0
	for _, r := range f.Requests() {
		if r == key {
			n++
		}
	}
	return n
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	key := r.Method + " " + path

	f.mu.Lock()
	f.requests = append(f.requests, key)
	status, fail := f.Fail[key]
	drop := f.dropped[key]
	f.mu.Unlock()

	if drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}

	if fail {
		writeJSON(w, status, map[string]string{"detail": "injected failure"})
		return
	}

	switch {
	case key == "POST /token/":
		f.handleLogin(w, r)
	case key == "POST /token/refresh/":
		f.handleRefresh(w, r)
	case key == "POST /users/register/":
		f.handleRegister(w, r)
	case strings.HasPrefix(path, "/todos/"):
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		f.handleTodos(w, r, strings.TrimPrefix(path, "/todos/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (f *FakeAPI) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.access[token]
	return ok
}

func (f *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[body.Username]; !ok || pw != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}
	access, refresh := f.issueLocked(body.Username)
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (f *FakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.refreshCalls++
	delay := f.RefreshDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	username, ok := f.refresh[body.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	f.tokenSeq++
	access := fmt.Sprintf("access-%d", f.tokenSeq)
	f.access[access] = username
	resp := map[string]string{"access": access}
	if f.RotateRefresh {
		delete(f.refresh, body.Refresh)
		next := fmt.Sprintf("refresh-%d", f.tokenSeq)
		f.refresh[next] = username
		resp["refresh"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"username": {"A user with that username already exists."},
		})
		return
	}
	f.users[body.Username] = body.Password
	writeJSON(w, http.StatusCreated, map[string]string{"username": body.Username, "email": body.Email})
}

func (f *FakeAPI) handleTodos(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodGet:
		f.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		f.handleCreate(w, r)
	case rest == "clear_completed/" && r.Method == http.MethodPost:
		f.mu.Lock()
		kept := f.tasks[:0]
		for _, t := range f.tasks {
			if !t.Completed {
				kept = append(kept, t)
			}
		}
		f.tasks = kept
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	case rest == "reorder/" && r.Method == http.MethodPost:
		f.handleReorder(w, r)
	default:
		f.handleItem(w, r, service.TaskID(strings.TrimSuffix(rest, "/")))
	}
}

func (f *FakeAPI) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("search")

	f.mu.Lock()
	delay := f.ListDelay[search]
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	now := f.Now()
	var matched []service.Task
	for _, t := range f.Tasks() {
		if search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(search)) {
			continue
		}
		if p := q.Get("priority"); p != "" && string(t.Priority) != p {
			continue
		}
		switch q.Get("status") {
		case service.StatusCompleted:
			if !t.Completed {
				continue
			}
		case service.StatusActive:
			if t.Completed || (t.DueDate != nil && !t.DueDate.After(now)) {
				continue
			}
		case service.StatusOverdue:
			if t.Completed || t.DueDate == nil || !t.DueDate.Before(now) {
				continue
			}
		}
		matched = append(matched, t)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	totalPages := (len(matched) + FakePageSize - 1) / FakePageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Invalid page."})
		return
	}
	start := (page - 1) * FakePageSize
	end := start + FakePageSize
	if end > len(matched) {
		end = len(matched)
	}
	results := matched[start:end]
	if results == nil {
		results = []service.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":     results,
		"count":       len(matched),
		"totalPages":  totalPages,
		"currentPage": page,
		"hasNext":     page < totalPages,
		"hasPrev":     page > 1,
	})
}

func (f *FakeAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft service.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil || strings.TrimSpace(draft.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
		return
	}
	f.mu.Lock()
	task := f.addTaskLocked(service.Task{Title: draft.Title, DueDate: draft.DueDate, Priority: draft.Priority})
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, task)
}

func (f *FakeAPI) handleReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order []service.TaskID `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid Todo IDs provided."})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	index := make(map[service.TaskID]int, len(f.tasks))
	for i, t := range f.tasks {
		index[t.ID] = i
	}
	for _, id := range body.Order {
		if _, ok := index[id]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("Todo with id %s not found or not owned by user.", id),
			})
			return
		}
	}
	for pos, id := range body.Order {
		f.tasks[index[id]].Order = pos
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

func (f *FakeAPI) handleItem(w http.ResponseWriter, r *http.Request, id service.TaskID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	for i, t := range f.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	switch r.Method {
	case http.MethodDelete:
		f.tasks = append(f.tasks[:idx], f.tasks[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPatch:
		var fields map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
			return
		}
		task := f.tasks[idx]
		if raw, ok := fields["title"]; ok {
			var title string
			if json.Unmarshal(raw, &title) != nil || strings.TrimSpace(title) == "" {
				writeJSON(w, http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
				return
			}
			task.Title = title
		}
		if raw, ok := fields["completed"]; ok {
			_ = json.Unmarshal(raw, &task.Completed)
		}
		if raw, ok := fields["priority"]; ok {
			_ = json.Unmarshal(raw, &task.Priority)
		}
		if raw, ok := fields["due_date"]; ok {
			task.DueDate = nil
			_ = json.Unmarshal(raw, &task.DueDate)
		}
		f.tasks[idx] = task
		writeJSON(w, http.StatusOK, task)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed."})
	}
}

func (f *FakeAPI) addTaskLocked(task service.Task) service.Task {
	if task.ID == "" {
		task.ID = service.TaskID(strconv.Itoa(f.nextID))
		f.nextID++
	}
	task.Priority = task.Priority.OrDefault()
	order := 0
	for _, t := range f.tasks {
		if t.Order >= order {
			order = t.Order + 1
		}
	}
	task.Order = order
	f.tasks = append(f.tasks, task)
	return task
}

func (f *FakeAPI) issueLocked(username string) (string, string) {
	f.tokenSeq++
	access := fmt.Sprintf("access-%d", f.tokenSeq)
	refresh := fmt.Sprintf("refresh-%d", f.tokenSeq)
	f.access[access] = username
	f.refresh[refresh] = username
	return access, refresh
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
