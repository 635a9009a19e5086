package service_test

import (
	"reflect"
	"testing"

	"taskmate/internal/service"
)

func sampleTasks() []service.Task {
	return []service.Task{
		{ID: "t1", Title: "Buy milk", Completed: false, UserID: "u1"},
		{ID: "t2", Title: "Write report", Completed: true, UserID: "u1"},
		{ID: "t3", Title: "Call mom", Completed: false, UserID: "u1"},
		{ID: "t4", Title: "Pay rent", Completed: true, UserID: "u1"},
	}
}

func ids(tasks []service.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilteredView_All(t *testing.T) {
	tasks := sampleTasks()
	got := service.FilteredView(tasks, service.FilterAll)
	if !reflect.DeepEqual(got, tasks) {
		t.Errorf("expected list unchanged, got %v", ids(got))
	}
}

func TestFilteredView_Completed(t *testing.T) {
	got := ids(service.FilteredView(sampleTasks(), service.FilterCompleted))
	expected := []string{"t2", "t4"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestFilteredView_Pending(t *testing.T) {
	got := ids(service.FilteredView(sampleTasks(), service.FilterPending))
	expected := []string{"t1", "t3"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestFilteredView_PreservesOrderAndSubset(t *testing.T) {
	tasks := sampleTasks()
	for _, f := range []service.Filter{service.FilterAll, service.FilterCompleted, service.FilterPending} {
		view := service.FilteredView(tasks, f)

		// Every element matches and appears in the same relative order.
		next := 0
		for _, v := range view {
			if !f.Matches(v) {
				t.Errorf("%s: task %s does not match filter", f, v.ID)
			}
			for next < len(tasks) && tasks[next].ID != v.ID {
				next++
			}
			if next == len(tasks) {
				t.Fatalf("%s: task %s out of order", f, v.ID)
			}
			next++
		}

		// Nothing matching was dropped.
		want := 0
		for _, task := range tasks {
			if f.Matches(task) {
				want++
			}
		}
		if len(view) != want {
			t.Errorf("%s: expected %d tasks, got %d", f, want, len(view))
		}
	}
}

func TestFilteredView_Idempotent(t *testing.T) {
	tasks := sampleTasks()
	before := sampleTasks()
	first := service.FilteredView(tasks, service.FilterPending)
	second := service.FilteredView(tasks, service.FilterPending)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical views, got %v and %v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(tasks, before) {
		t.Error("input list was modified")
	}
}

func TestFilteredView_Empty(t *testing.T) {
	got := service.FilteredView(nil, service.FilterCompleted)
	if len(got) != 0 {
		t.Errorf("expected empty view, got %v", ids(got))
	}
}

func TestParseFilter(t *testing.T) {
	cases := map[string]service.Filter{
		"":           service.FilterAll,
		"all":        service.FilterAll,
		" Completed": service.FilterCompleted,
		"PENDING":    service.FilterPending,
	}
	for in, want := range cases {
		got, err := service.ParseFilter(in)
		if err != nil {
			t.Errorf("ParseFilter(%q): unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseFilter(%q): expected %q, got %q", in, want, got)
		}
	}

	if _, err := service.ParseFilter("done"); err == nil {
		t.Error("expected error for unknown filter")
	}
}
