// Package todoapi implements the service.Service interface over the task REST API.
package todoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"todo/internal/gateway"
	"todo/internal/service"
)

// Endpoints relative to the API base.
const (
	TodosEndpoint          = "/todos/"
	ClearCompletedEndpoint = "/todos/clear_completed/"
	ReorderEndpoint        = "/todos/reorder/"
)

// Requester sends authenticated API requests.
type Requester interface {
	Request(ctx context.Context, method, endpoint string, body any, requireAuth bool) (*gateway.Response, error)
}

// Client implements service.Service using the task API.
type Client struct {
	api Requester
}

// New creates a client sending through api.
func New(api Requester) *Client {
	return &Client{api: api}
}

var _ service.Service = (*Client)(nil)

// ListTasks returns one filtered page of tasks in server order.
func (c *Client) ListTasks(ctx context.Context, q service.Query) (service.Page, error) {
	resp, err := c.api.Request(ctx, http.MethodGet, TodosEndpoint+"?"+q.Values().Encode(), nil, true)
	if err != nil {
		return service.Page{}, err
	}
	if !resp.OK() {
		return service.Page{}, service.RequestFailed("failed to load tasks", resp.Status, resp.Body)
	}
	page, err := decodePage(resp.Body, q.Page)
	if err != nil {
		return service.Page{}, fmt.Errorf("decode task page: %w", err)
	}
	return page, nil
}

// CreateTask creates a task and returns it as stored.
func (c *Client) CreateTask(ctx context.Context, d service.Draft) (service.Task, error) {
	d.Priority = d.Priority.OrDefault()
	return c.sendTask(ctx, http.MethodPost, TodosEndpoint, d, "failed to add task")
}

// PatchTask updates only the fields set in p.
func (c *Client) PatchTask(ctx context.Context, id service.TaskID, p service.Patch) (service.Task, error) {
	return c.sendTask(ctx, http.MethodPatch, itemEndpoint(id), p, "failed to update task")
}

// EditTask submits the full edited field set.
func (c *Client) EditTask(ctx context.Context, id service.TaskID, e service.Edit) (service.Task, error) {
	e.Priority = e.Priority.OrDefault()
	return c.sendTask(ctx, http.MethodPatch, itemEndpoint(id), e, "failed to save task")
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id service.TaskID) error {
	return c.expectOK(ctx, http.MethodDelete, itemEndpoint(id), nil, "failed to delete task")
}

// ClearCompleted deletes all completed tasks.
func (c *Client) ClearCompleted(ctx context.Context) error {
	return c.expectOK(ctx, http.MethodPost, ClearCompletedEndpoint, nil, "failed to clear completed tasks")
}

type reorderRequest struct {
	Order []service.TaskID `json:"order"`
}

// Reorder persists ids as the new order.
func (c *Client) Reorder(ctx context.Context, ids []service.TaskID) error {
	if ids == nil {
		ids = []service.TaskID{}
	}
	return c.expectOK(ctx, http.MethodPost, ReorderEndpoint, reorderRequest{Order: ids}, "failed to reorder tasks")
}

func (c *Client) sendTask(ctx context.Context, method, endpoint string, body any, failure string) (service.Task, error) {
	resp, err := c.api.Request(ctx, method, endpoint, body, true)
	if err != nil {
		return service.Task{}, err
	}
	if !resp.OK() {
		return service.Task{}, service.RequestFailed(failure, resp.Status, resp.Body)
	}
	var task service.Task
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return task, nil
	}
	if err := resp.Decode(&task); err != nil {
		return service.Task{}, fmt.Errorf("decode task: %w", err)
	}
	task.Priority = task.Priority.OrDefault()
	return task, nil
}

func (c *Client) expectOK(ctx context.Context, method, endpoint string, body any, failure string) error {
	resp, err := c.api.Request(ctx, method, endpoint, body, true)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return service.RequestFailed(failure, resp.Status, resp.Body)
	}
	return nil
}

func itemEndpoint(id service.TaskID) string {
	return TodosEndpoint + url.PathEscape(string(id)) + "/"
}

// pageResponse accepts both the extended pagination fields and the plain
// count/next/previous envelope.
type pageResponse struct {
	Results     []service.Task `json:"results"`
	Count       int            `json:"count"`
	Next        *string        `json:"next"`
	Previous    *string        `json:"previous"`
	TotalPages  *int           `json:"totalPages"`
	CurrentPage *int           `json:"currentPage"`
	HasNext     *bool          `json:"hasNext"`
	HasPrev     *bool          `json:"hasPrev"`
}

func decodePage(body []byte, requested int) (service.Page, error) {
	if requested < 1 {
		requested = 1
	}
	trimmed := bytes.TrimSpace(body)

	// Unpaginated list.
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tasks []service.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return service.Page{}, err
		}
		normalizeTasks(tasks)
		return service.Page{
			Tasks:      tasks,
			Pagination: service.Pagination{Count: len(tasks), CurrentPage: 1, TotalPages: 1},
		}, nil
	}

	var raw pageResponse
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return service.Page{}, err
	}
	normalizeTasks(raw.Results)

	p := service.Pagination{Count: raw.Count, CurrentPage: requested}
	if raw.CurrentPage != nil {
		p.CurrentPage = *raw.CurrentPage
	}
	if raw.HasNext != nil {
		p.HasNext = *raw.HasNext
	} else {
		p.HasNext = raw.Next != nil && *raw.Next != ""
	}
	if raw.HasPrev != nil {
		p.HasPrev = *raw.HasPrev
	} else {
		p.HasPrev = raw.Previous != nil && *raw.Previous != ""
	}
	switch {
	case raw.TotalPages != nil:
		p.TotalPages = *raw.TotalPages
	case p.HasNext:
		p.TotalPages = p.CurrentPage + 1
	default:
		p.TotalPages = p.CurrentPage
	}
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	return service.Page{Tasks: raw.Results, Pagination: p}, nil
}

func normalizeTasks(tasks []service.Task) {
	for i := range tasks {
		tasks[i].Priority = tasks[i].Priority.OrDefault()
	}
}
