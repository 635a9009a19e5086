// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskmate/internal/service"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TITLE}  (due YYYY-MM-DD)\n". The checkbox is
// "[ ]" for pending tasks and the due suffix is omitted without a deadline.
func FormatTask(w io.Writer, num int, task service.Task) {
	box := "[ ]"
	if task.Completed {
		box = "[x]"
	}
	fmt.Fprintf(w, "%4d  %s %s", num, box, normalizeTitle(task.Title))
	if task.HasDueDate() {
		fmt.Fprintf(w, "  (due %s)", FormatDate(*task.DueDate))
	}
	fmt.Fprintln(w)
}

// FormatDate prints a due date as a UTC calendar day.
func FormatDate(t time.Time) string {
	return t.UTC().Format(service.DateLayout)
}

// FormatIdentity formats the signed-in account for whoami.
func FormatIdentity(w io.Writer, email, userID string) {
	if strings.TrimSpace(email) == "" {
		fmt.Fprintln(w, userID)
		return
	}
	fmt.Fprintf(w, "%s (%s)\n", email, userID)
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
