// Package service defines the backend-agnostic task model and store interface.
package service

import (
	"context"
	"time"
)

// Store defines the remote operations on the task collection.
// Every backend (Firestore, Redis, Azure Tables) implements it.
// The task manager never talks to a backend SDK directly.
type Store interface {
	// ListTasks returns every task whose owner is ownerID, newest first.
	ListTasks(ctx context.Context, ownerID string) ([]Task, error)

	// CreateTask stores a new pending task and returns the id the store assigned.
	// The creation timestamp is assigned by the store.
	CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error)

	// SetTaskCompletion patches only the completed flag.
	// Returns a NotFound StoreError if the task does not exist.
	SetTaskCompletion(ctx context.Context, taskID string, completed bool) error

	// DeleteTask removes a task. Deleting an absent task succeeds.
	DeleteTask(ctx context.Context, taskID string) error
}
