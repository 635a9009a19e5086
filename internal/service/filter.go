package service

import (
	"fmt"
	"strings"
)

// Filter selects a derived view over a task list.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

// ParseFilter parses a filter name (case-insensitive, trimmed).
// An empty name means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCompleted:
		return FilterCompleted, nil
	case FilterPending:
		return FilterPending, nil
	default:
		return "", fmt.Errorf("invalid filter: %s", s)
	}
}

// Matches reports whether task belongs to the filter's view.
func (f Filter) Matches(task Task) bool {
	switch f {
	case FilterCompleted:
		return task.Completed
	case FilterPending:
		return !task.Completed
	default:
		return true
	}
}

// FilteredView returns the tasks matching f in their original order.
// The input slice is never modified.
func FilteredView(tasks []Task, f Filter) []Task {
	result := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			result = append(result, t)
		}
	}
	return result
}
