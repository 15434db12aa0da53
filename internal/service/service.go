// Package service defines the backend-agnostic interface for task operations.
package service

import "context"

// Service defines the interface for the remote task-list API.
// The sync engine and commands only talk to the backend through it.
type Service interface {
	// ListTasks returns one filtered page of tasks in server order.
	ListTasks(ctx context.Context, q Query) (Page, error)

	// CreateTask creates a task and returns it as stored.
	CreateTask(ctx context.Context, d Draft) (Task, error)

	// PatchTask updates only the fields set in p.
	PatchTask(ctx context.Context, id TaskID, p Patch) (Task, error)

	// EditTask submits the full edited field set.
	EditTask(ctx context.Context, id TaskID, e Edit) (Task, error)

	// DeleteTask deletes a task. A 204 answer is success.
	DeleteTask(ctx context.Context, id TaskID) error

	// ClearCompleted deletes all completed tasks of the user.
	ClearCompleted(ctx context.Context) error

	// Reorder persists the given id sequence as the new list order.
	Reorder(ctx context.Context, ids []TaskID) error
}
