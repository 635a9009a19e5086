package tasks_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"taskmate/internal/service"
	"taskmate/internal/tasks"
	"taskmate/internal/testutil"
)

// readyManager returns a manager signed in as owner with the store's tasks loaded.
func readyManager(t *testing.T, store *testutil.FakeStore, owner string) *tasks.Manager {
	t.Helper()
	mgr := tasks.NewManager(store, nil)
	if err := mgr.SetOwner(context.Background(), owner); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	store.ResetCalls()
	return mgr
}

func taskIDs(list []service.Task) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func TestManager_SetOwnerLoadsOwnerTasks(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Older", "u1", false)
	store.AddTask("x1", "Other owner", "u2", false)
	store.AddTask("t2", "Newer", "u1", true)

	mgr := readyManager(t, store, "u1")

	got := taskIDs(mgr.Tasks())
	expected := []string{"t2", "t1"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	for _, task := range mgr.Tasks() {
		if task.UserID != "u1" {
			t.Errorf("task %s belongs to %s, expected u1", task.ID, task.UserID)
		}
	}
	if mgr.Loading() {
		t.Error("expected loading to be false after load")
	}
	if mgr.Err() != "" {
		t.Errorf("expected no error, got %q", mgr.Err())
	}
}

func TestManager_InitialLoadFailure(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	store.ListTasksErr = service.NewStoreError("list", service.KindNetwork, "network unreachable", nil)

	mgr := tasks.NewManager(store, nil)
	err := mgr.SetOwner(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(mgr.Tasks()) != 0 {
		t.Errorf("expected empty list, got %v", taskIDs(mgr.Tasks()))
	}
	if mgr.Err() != "network unreachable" {
		t.Errorf("expected error message, got %q", mgr.Err())
	}
	if mgr.Loading() {
		t.Error("expected loading to be false")
	}
}

func TestManager_SignOutClearsState(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")
	mgr.SetFilter(service.FilterCompleted)

	if err := mgr.SetOwner(context.Background(), ""); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	state := mgr.Snapshot()
	if len(state.Tasks) != 0 {
		t.Errorf("expected empty list, got %v", taskIDs(state.Tasks))
	}
	if state.Loading {
		t.Error("expected loading to be false")
	}
	if state.Err != "" {
		t.Errorf("expected no error, got %q", state.Err)
	}
	if state.Owner != "" {
		t.Errorf("expected no owner, got %q", state.Owner)
	}
	if state.Filter != service.FilterCompleted {
		t.Errorf("expected filter to be kept, got %q", state.Filter)
	}
}

func TestManager_SignOutClearsError(t *testing.T) {
	store := testutil.NewFakeStore()
	mgr := readyManager(t, store, "u1")
	store.DeleteTaskErr = errors.New("permission denied")
	_ = mgr.RemoveTask(context.Background(), "t1")
	if mgr.Err() == "" {
		t.Fatal("expected error to be recorded")
	}

	_ = mgr.SetOwner(context.Background(), "")
	if mgr.Err() != "" {
		t.Errorf("expected error cleared on sign out, got %q", mgr.Err())
	}
}

func TestManager_SwitchOwnerDoesNotLeakTasks(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("a1", "Alice task", "alice", false)
	store.AddTask("b1", "Bob task", "bob", false)
	mgr := readyManager(t, store, "alice")

	store.ListTasksErr = errors.New("offline")
	_ = mgr.SetOwner(context.Background(), "bob")

	if len(mgr.Tasks()) != 0 {
		t.Errorf("expected previous owner's tasks to be cleared, got %v", taskIDs(mgr.Tasks()))
	}
}

func TestManager_AddTask(t *testing.T) {
	store := testutil.NewFakeStore()
	mgr := readyManager(t, store, "u1")

	if err := mgr.AddTask(context.Background(), "Buy milk", nil); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	calls := store.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 store calls, got %v", calls)
	}
	if calls[0].Op != testutil.OpCreateTask {
		t.Errorf("expected first call %s, got %s", testutil.OpCreateTask, calls[0].Op)
	}
	if calls[1].Op != testutil.OpListTasks {
		t.Errorf("expected second call %s, got %s", testutil.OpListTasks, calls[1].Op)
	}

	list := mgr.Tasks()
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}
	task := list[0]
	if task.Title != "Buy milk" {
		t.Errorf("expected title %q, got %q", "Buy milk", task.Title)
	}
	if task.Completed {
		t.Error("expected new task to be pending")
	}
	if task.DueDate != nil {
		t.Errorf("expected no due date, got %v", task.DueDate)
	}
	if task.ID == "" || task.CreatedAt.IsZero() {
		t.Error("expected store-assigned id and creation time")
	}
	if mgr.Loading() {
		t.Error("expected loading to be false")
	}
}

func TestManager_AddTaskWithDueDateNewestFirst(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Existing", "u1", false)
	mgr := readyManager(t, store, "u1")

	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	if err := mgr.AddTask(context.Background(), "Renew passport", &due); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	list := mgr.Tasks()
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].Title != "Renew passport" {
		t.Errorf("expected new task first, got %q", list[0].Title)
	}
	if list[0].DueDate == nil || !list[0].DueDate.Equal(due) {
		t.Errorf("expected due date %v, got %v", due, list[0].DueDate)
	}
}

func TestManager_AddTaskFailurePreservesList(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Existing", "u1", false)
	mgr := readyManager(t, store, "u1")
	store.CreateTaskErr = service.NewStoreError("create", service.KindInvalid, "write rejected", nil)

	err := mgr.AddTask(context.Background(), "New", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := taskIDs(mgr.Tasks()); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("expected list unchanged, got %v", got)
	}
	if mgr.Err() != "write rejected" {
		t.Errorf("expected error message, got %q", mgr.Err())
	}
	if store.CallCount(testutil.OpListTasks) != 0 {
		t.Error("expected no refresh after failed create")
	}
	if mgr.Loading() {
		t.Error("expected loading to be false")
	}
}

func TestManager_ToggleStatus(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")
	before := mgr.Tasks()[0]

	if err := mgr.ToggleStatus(context.Background(), "t1", true); err != nil {
		t.Fatalf("ToggleStatus: %v", err)
	}

	after := mgr.Tasks()[0]
	if !after.Completed {
		t.Error("expected task to be completed")
	}
	before.Completed = true
	if !reflect.DeepEqual(before, after) {
		t.Errorf("expected only completed to change, got %+v", after)
	}
	if store.CallCount(testutil.OpListTasks) != 0 {
		t.Error("expected no re-fetch after toggle")
	}
	if store.CallCount(testutil.OpSetTaskCompletion) != 1 {
		t.Errorf("expected 1 SetTaskCompletion call, got %d", store.CallCount(testutil.OpSetTaskCompletion))
	}
}

func TestManager_ToggleFailurePreservesState(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")
	store.SetTaskCompletionErr = service.NewStoreError("update", service.KindPermission, "permission denied", nil)

	if err := mgr.ToggleStatus(context.Background(), "t1", true); err == nil {
		t.Fatal("expected error")
	}

	if mgr.Tasks()[0].Completed {
		t.Error("expected task to stay pending")
	}
	if mgr.Err() == "" {
		t.Error("expected error to be set")
	}
	if mgr.Loading() {
		t.Error("expected loading to be false")
	}
}

func TestManager_RemoveTask(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t2", "Second", "u1", false)
	store.AddTask("t1", "First", "u1", false)
	mgr := readyManager(t, store, "u1")

	if err := mgr.RemoveTask(context.Background(), "t1"); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}

	if got := taskIDs(mgr.Tasks()); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Errorf("expected [t2], got %v", got)
	}
	calls := store.Calls()
	if len(calls) != 1 || calls[0].Op != testutil.OpDeleteTask || calls[0].Args[0] != "t1" {
		t.Errorf("expected exactly DeleteTask(t1), got %v", calls)
	}
}

func TestManager_RemoveFailurePreservesList(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")
	store.DeleteTaskErr = errors.New("unavailable")

	if err := mgr.RemoveTask(context.Background(), "t1"); err == nil {
		t.Fatal("expected error")
	}
	if got := taskIDs(mgr.Tasks()); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("expected list unchanged, got %v", got)
	}
	if mgr.Err() != "unavailable" {
		t.Errorf("expected error message, got %q", mgr.Err())
	}
}

func TestManager_RefreshFailureKeepsList(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")
	store.ListTasksErr = errors.New("timeout")

	if err := mgr.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := taskIDs(mgr.Tasks()); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("expected list unchanged, got %v", got)
	}
	if mgr.Err() != "timeout" {
		t.Errorf("expected error message, got %q", mgr.Err())
	}
}

func TestManager_NewErrorReplacesPrevious(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")

	store.DeleteTaskErr = errors.New("first")
	_ = mgr.RemoveTask(context.Background(), "t1")
	store.SetTaskCompletionErr = errors.New("second")
	_ = mgr.ToggleStatus(context.Background(), "t1", true)

	if mgr.Err() != "second" {
		t.Errorf("expected latest error, got %q", mgr.Err())
	}

	// A successful operation clears the error.
	store.ListTasksErr = nil
	if err := mgr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if mgr.Err() != "" {
		t.Errorf("expected error cleared, got %q", mgr.Err())
	}
}

func TestManager_OperationsRequireOwner(t *testing.T) {
	store := testutil.NewFakeStore()
	mgr := tasks.NewManager(store, nil)
	ctx := context.Background()

	if err := mgr.Refresh(ctx); !errors.Is(err, tasks.ErrSignedOut) {
		t.Errorf("Refresh: expected ErrSignedOut, got %v", err)
	}
	if err := mgr.AddTask(ctx, "Task", nil); !errors.Is(err, tasks.ErrSignedOut) {
		t.Errorf("AddTask: expected ErrSignedOut, got %v", err)
	}
	if err := mgr.ToggleStatus(ctx, "t1", true); !errors.Is(err, tasks.ErrSignedOut) {
		t.Errorf("ToggleStatus: expected ErrSignedOut, got %v", err)
	}
	if err := mgr.RemoveTask(ctx, "t1"); !errors.Is(err, tasks.ErrSignedOut) {
		t.Errorf("RemoveTask: expected ErrSignedOut, got %v", err)
	}
	if len(store.Calls()) != 0 {
		t.Errorf("expected no store calls, got %v", store.Calls())
	}
}

func TestManager_RefreshDiscardedAfterSignOut(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := readyManager(t, store, "u1")

	store.BeforeList = func() {
		store.BeforeList = nil
		_ = mgr.SetOwner(context.Background(), "")
	}

	err := mgr.Refresh(context.Background())
	if !errors.Is(err, tasks.ErrOwnerChanged) {
		t.Fatalf("expected ErrOwnerChanged, got %v", err)
	}
	if len(mgr.Tasks()) != 0 {
		t.Errorf("expected stale result to be dropped, got %v", taskIDs(mgr.Tasks()))
	}
}

func TestManager_FilteredView(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Pending", "u1", false)
	store.AddTask("t2", "Done", "u1", true)
	mgr := readyManager(t, store, "u1")

	mgr.SetFilter(service.FilterCompleted)
	if got := taskIDs(mgr.Filtered()); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Errorf("expected [t2], got %v", got)
	}
	mgr.SetFilter(service.FilterPending)
	if got := taskIDs(mgr.Snapshot().Filtered()); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("expected [t1], got %v", got)
	}
	if len(store.Calls()) != 0 {
		t.Error("filter changes must not reach the store")
	}
}

func TestManager_SubscribeNotifiesTransitions(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddTask("t1", "Task", "u1", false)
	mgr := tasks.NewManager(store, nil)

	var mu sync.Mutex
	var states []tasks.State
	cancel := mgr.Subscribe(func(s tasks.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	if err := mgr.SetOwner(context.Background(), "u1"); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}

	mu.Lock()
	got := len(states)
	sawLoading := false
	for _, s := range states {
		if s.Loading {
			sawLoading = true
		}
	}
	last := states[len(states)-1]
	mu.Unlock()

	if got < 2 {
		t.Fatalf("expected at least 2 notifications, got %d", got)
	}
	if !sawLoading {
		t.Error("expected a loading notification")
	}
	if last.Loading || len(last.Tasks) != 1 {
		t.Errorf("expected ready state with 1 task, got %+v", last)
	}

	cancel()
	mgr.SetFilter(service.FilterPending)
	mu.Lock()
	if len(states) != got {
		t.Errorf("expected no notification after cancel, got %d", len(states)-got)
	}
	mu.Unlock()
}

func TestManager_LogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := testutil.NewFakeStore()
	mgr := tasks.NewManager(store, logger)
	_ = mgr.SetOwner(context.Background(), "u1")

	store.SetTaskCompletionErr = errors.New("denied")
	_ = mgr.ToggleStatus(context.Background(), "t1", true)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Message != "Failed to update task" {
		t.Errorf("expected %q, got %q", "Failed to update task", entry.Message)
	}
	if entry.Data["task_id"] != "t1" {
		t.Errorf("expected task_id field t1, got %v", entry.Data["task_id"])
	}
}
