package service

import (
	"testing"
	"time"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-14", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{" 2026-03-14 ", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"2026-03-14T17:30:00Z", time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)},
		{"2026-03-14T17:30:00+02:00", time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDueDate(tt.in)
		if err != nil {
			t.Errorf("ParseDueDate(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDueDate(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestParseDueDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "14/03/2026", "2026-13-01"} {
		if _, err := ParseDueDate(in); err == nil {
			t.Errorf("ParseDueDate(%q): expected error", in)
		}
	}
}

func TestTask_HasDueDate(t *testing.T) {
	due := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if (Task{}).HasDueDate() {
		t.Error("expected no due date")
	}
	if !(Task{DueDate: &due}).HasDueDate() {
		t.Error("expected due date")
	}
}
