// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskmate/internal/service"
)

// Operation names recorded by FakeStore.
const (
	OpListTasks         = "ListTasks"
	OpCreateTask        = "CreateTask"
	OpSetTaskCompletion = "SetTaskCompletion"
	OpDeleteTask        = "DeleteTask"
)

// Call records one FakeStore invocation.
type Call struct {
	Op   string
	Args []string
}

func (c Call) String() string {
	return c.Op + "(" + strings.Join(c.Args, ", ") + ")"
}

// FakeStore is an in-memory implementation of service.Store for testing.
// Creation times come from a fake clock that advances one second per
// created task, so listing order is deterministic.
type FakeStore struct {
	mu    sync.RWMutex
	tasks map[string]service.Task
	clock time.Time
	calls []Call

	// Error injection for testing
	ListTasksErr         error
	CreateTaskErr        error
	SetTaskCompletionErr error
	DeleteTaskErr        error

	// BeforeList, when set, runs at the start of ListTasks (after the call
	// is recorded). Tests use it to interleave other operations.
	BeforeList func()
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		tasks: make(map[string]service.Task),
		clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// AddTask seeds a task directly, bypassing call recording.
func (f *FakeStore) AddTask(id, title, ownerID string, completed bool) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{
		ID:        id,
		Title:     title,
		Completed: completed,
		CreatedAt: f.tick(),
		UserID:    ownerID,
	}
	f.tasks[id] = t
	return t
}

// Task returns the stored copy of a task.
func (f *FakeStore) Task(id string) (service.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tasks[id]
	return t, ok
}

// Calls returns every recorded call in order.
func (f *FakeStore) Calls() []Call {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (f *FakeStore) CallCount(op string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *FakeStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeStore) record(op string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Args: args})
}

// tick advances the fake clock. Caller holds f.mu.
func (f *FakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// ListTasks implements service.Store.
func (f *FakeStore) ListTasks(ctx context.Context, ownerID string) ([]service.Task, error) {
	f.record(OpListTasks, ownerID)
	if f.BeforeList != nil {
		f.BeforeList()
	}
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var result []service.Task
	for _, t := range f.tasks {
		if t.UserID == ownerID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CreateTask implements service.Store.
func (f *FakeStore) CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error) {
	due := ""
	if dueDate != nil {
		due = dueDate.Format(time.RFC3339)
	}
	f.record(OpCreateTask, title, ownerID, due)
	if f.CreateTaskErr != nil {
		return "", f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.NewString()
	var dueCopy *time.Time
	if dueDate != nil {
		d := *dueDate
		dueCopy = &d
	}
	f.tasks[id] = service.Task{
		ID:        id,
		Title:     title,
		DueDate:   dueCopy,
		CreatedAt: f.tick(),
		UserID:    ownerID,
	}
	return id, nil
}

// SetTaskCompletion implements service.Store.
func (f *FakeStore) SetTaskCompletion(ctx context.Context, taskID string, completed bool) error {
	f.record(OpSetTaskCompletion, taskID, fmt.Sprint(completed))
	if f.SetTaskCompletionErr != nil {
		return f.SetTaskCompletionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tasks[taskID]
	if !ok {
		return service.NewStoreError("update", service.KindNotFound, "task not found: "+taskID, nil)
	}
	t.Completed = completed
	f.tasks[taskID] = t
	return nil
}

// DeleteTask implements service.Store.
func (f *FakeStore) DeleteTask(ctx context.Context, taskID string) error {
	f.record(OpDeleteTask, taskID)
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, taskID)
	return nil
}
