// Package tasks holds the in-memory task list of the signed-in owner and
// keeps it in step with the remote store.
//
// The Manager follows a small state machine per owner session:
//
//	no owner ──SetOwner(id)──▶ loading ──▶ ready | error
//	ready ──Refresh/AddTask/ToggleStatus/RemoveTask──▶ loading ──▶ ready | error
//	any ──SetOwner("")──▶ no owner (list cleared, filter kept)
//
// Operations are not queued. Two overlapping calls race and the last
// write to the list, the loading flag or the error wins. Field writes are
// guarded by a mutex, and a refresh that finishes after the owner changed
// drops its result.
package tasks

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskmate/internal/logging"
	"taskmate/internal/service"
)

var (
	// ErrSignedOut is returned by operations that need an owner when none is set.
	ErrSignedOut = errors.New("not signed in")

	// ErrOwnerChanged is returned by a refresh whose owner changed while
	// the store call was in flight. The fetched list is discarded.
	ErrOwnerChanged = errors.New("owner changed during refresh")
)

// Fallback messages recorded when a store error carries no text.
const (
	msgFetchFailed  = "Failed to fetch tasks"
	msgAddFailed    = "Failed to add task"
	msgUpdateFailed = "Failed to update task"
	msgDeleteFailed = "Failed to delete task"
)

// State is a copy of the manager's observable state.
type State struct {
	Owner   string
	Tasks   []service.Task
	Filter  service.Filter
	Loading bool
	Err     string // last error message, empty when the last operation succeeded
}

// Filtered applies the state's filter to its task list.
func (s State) Filtered() []service.Task {
	return service.FilteredView(s.Tasks, s.Filter)
}

// Manager owns the authoritative in-memory task list for the current owner.
type Manager struct {
	store service.Store
	log   log.FieldLogger

	mu      sync.Mutex
	owner   string
	gen     uint64 // incremented on every owner change
	tasks   []service.Task
	filter  service.Filter
	loading bool
	lastErr string

	subMu   sync.Mutex
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewManager creates a Manager with no owner and the "all" filter.
// A nil logger discards log output.
func NewManager(store service.Store, logger log.FieldLogger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		store:  store,
		log:    logger,
		filter: service.FilterAll,
		subs:   make(map[uint64]func(State)),
	}
}

// SetOwner reacts to an authentication transition. A non-empty owner
// triggers a full load; switching to a different owner first clears the
// list so tasks never leak across owners. An empty owner (sign-out)
// clears the list, the loading flag and the error, but keeps the filter.
func (m *Manager) SetOwner(ctx context.Context, owner string) error {
	m.mu.Lock()
	changed := owner != m.owner
	if changed {
		m.owner = owner
		m.gen++
		m.tasks = nil
	}
	if owner == "" {
		m.loading = false
		m.lastErr = ""
		m.mu.Unlock()
		m.log.Debug("owner signed out, task list cleared")
		m.notify()
		return nil
	}
	m.mu.Unlock()

	if changed {
		m.log.WithField("owner", owner).Debug("owner changed")
		m.notify()
	}
	return m.Refresh(ctx)
}

// Refresh re-fetches the owner's tasks. On failure the error message is
// recorded and the list is left as it was.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	owner, gen := m.owner, m.gen
	if owner == "" {
		m.mu.Unlock()
		return ErrSignedOut
	}
	m.loading = true
	m.lastErr = ""
	m.mu.Unlock()
	m.notify()

	list, err := m.store.ListTasks(ctx, owner)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.WithField("owner", owner).Debug("discarding refresh for previous owner")
		return ErrOwnerChanged
	}
	if err != nil {
		m.lastErr = service.Message(err, msgFetchFailed)
	} else {
		m.tasks = list
	}
	m.loading = false
	m.mu.Unlock()

	if err != nil {
		m.log.WithError(err).WithField("owner", owner).Warn("fetch tasks failed")
	} else {
		m.log.WithFields(log.Fields{"owner": owner, "count": len(list)}).Debug("tasks loaded")
	}
	m.notify()
	return err
}

// AddTask creates a task for the current owner and then re-fetches the
// whole list, so the store-assigned id and creation time are what the
// list shows. The title is expected to be validated by the caller.
func (m *Manager) AddTask(ctx context.Context, title string, dueDate *time.Time) error {
	owner, err := m.begin()
	if err != nil {
		return err
	}

	id, err := m.store.CreateTask(ctx, title, owner, dueDate)
	if err != nil {
		m.fail(err, msgAddFailed, log.Fields{"op": "add", "owner": owner})
		return err
	}
	m.log.WithFields(log.Fields{"owner": owner, "task_id": id}).Debug("task created")

	err = m.Refresh(ctx)
	m.settle()
	return err
}

// ToggleStatus sets a task's completion flag. After the store confirms,
// only the matching in-memory entry is patched; nothing is re-fetched.
func (m *Manager) ToggleStatus(ctx context.Context, taskID string, completed bool) error {
	if _, err := m.begin(); err != nil {
		return err
	}

	if err := m.store.SetTaskCompletion(ctx, taskID, completed); err != nil {
		m.fail(err, msgUpdateFailed, log.Fields{"op": "toggle", "task_id": taskID})
		return err
	}

	m.mu.Lock()
	next := make([]service.Task, len(m.tasks))
	for i, t := range m.tasks {
		if t.ID == taskID {
			t.Completed = completed
		}
		next[i] = t
	}
	m.tasks = next
	m.loading = false
	m.mu.Unlock()

	m.log.WithFields(log.Fields{"task_id": taskID, "completed": completed}).Debug("task status updated")
	m.notify()
	return nil
}

// RemoveTask deletes a task. After the store confirms, the entry is
// dropped from the in-memory list by id.
func (m *Manager) RemoveTask(ctx context.Context, taskID string) error {
	if _, err := m.begin(); err != nil {
		return err
	}

	if err := m.store.DeleteTask(ctx, taskID); err != nil {
		m.fail(err, msgDeleteFailed, log.Fields{"op": "remove", "task_id": taskID})
		return err
	}

	m.mu.Lock()
	m.tasks = slices.DeleteFunc(slices.Clone(m.tasks), func(t service.Task) bool {
		return t.ID == taskID
	})
	m.loading = false
	m.mu.Unlock()

	m.log.WithField("task_id", taskID).Debug("task removed")
	m.notify()
	return nil
}

// SetFilter changes the derived view. The filter is never sent to the store.
func (m *Manager) SetFilter(f service.Filter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	m.notify()
}

// Filter returns the active filter.
func (m *Manager) Filter() service.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// Owner returns the current owner id, empty when signed out.
func (m *Manager) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Tasks returns a copy of the full in-memory list, newest first.
func (m *Manager) Tasks() []service.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tasks)
}

// Filtered returns the in-memory list under the active filter.
func (m *Manager) Filtered() []service.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.FilteredView(m.tasks, m.filter)
}

// Loading reports whether a store call is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the last recorded error message.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Snapshot returns a copy of the whole observable state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		Owner:   m.owner,
		Tasks:   slices.Clone(m.tasks),
		Filter:  m.filter,
		Loading: m.loading,
		Err:     m.lastErr,
	}
}

// Subscribe registers fn to be called with a fresh State after every
// transition. Calls happen on the goroutine that caused the transition,
// so fn must not block. The returned function cancels the subscription.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify() {
	state := m.Snapshot()

	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// begin enters the loading state and clears the previous error.
func (m *Manager) begin() (string, error) {
	m.mu.Lock()
	owner := m.owner
	if owner == "" {
		m.mu.Unlock()
		return "", ErrSignedOut
	}
	m.loading = true
	m.lastErr = ""
	m.mu.Unlock()
	m.notify()
	return owner, nil
}

// fail records err as the last error and leaves the list untouched.
func (m *Manager) fail(err error, fallback string, fields log.Fields) {
	m.mu.Lock()
	m.lastErr = service.Message(err, fallback)
	m.loading = false
	m.mu.Unlock()

	m.log.WithError(err).WithFields(fields).Warn(fallback)
	m.notify()
}

// settle ends a compound operation with loading cleared, whatever an
// interleaved call left behind.
func (m *Manager) settle() {
	m.mu.Lock()
	wasLoading := m.loading
	m.loading = false
	m.mu.Unlock()
	if wasLoading {
		m.notify()
	}
}
