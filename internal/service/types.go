// Package service defines the backend-agnostic task model and store interface.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Task represents a single task owned by one user.
type Task struct {
	ID        string
	Title     string
	Completed bool
	DueDate   *time.Time // nil means no deadline
	CreatedAt time.Time
	UserID    string
}

// HasDueDate reports whether the task carries a deadline.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil
}

// DateLayout is the calendar-day layout of due dates.
const DateLayout = "2006-01-02"

// ParseDueDate accepts a calendar day (midnight UTC) or an RFC 3339 timestamp.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("invalid due date: %s (want YYYY-MM-DD or RFC3339)", s)
}
