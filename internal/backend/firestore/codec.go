package firestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	fs "google.golang.org/api/firestore/v1"

	"taskmate/internal/service"
)

func stringValue(s string) fs.Value {
	return fs.Value{StringValue: s, ForceSendFields: []string{"StringValue"}}
}

func boolValue(b bool) fs.Value {
	return fs.Value{BooleanValue: b, ForceSendFields: []string{"BooleanValue"}}
}

func timeValue(t *time.Time) fs.Value {
	if t == nil {
		return fs.Value{NullValue: "NULL_VALUE"}
	}
	return fs.Value{TimestampValue: t.UTC().Format(time.RFC3339Nano)}
}

// encodeTask builds the document for a new task. createdAt is left to the
// server transform.
func encodeTask(title, ownerID string, dueDate *time.Time) *fs.Document {
	return &fs.Document{
		Fields: map[string]fs.Value{
			fieldTitle:     stringValue(title),
			fieldCompleted: boolValue(false),
			fieldDueDate:   timeValue(dueDate),
			fieldUserID:    stringValue(ownerID),
		},
	}
}

func decodeTask(doc *fs.Document) (service.Task, error) {
	t := service.Task{
		ID:        docID(doc.Name),
		Title:     doc.Fields[fieldTitle].StringValue,
		Completed: doc.Fields[fieldCompleted].BooleanValue,
		UserID:    doc.Fields[fieldUserID].StringValue,
	}

	if v, ok := doc.Fields[fieldDueDate]; ok && v.TimestampValue != "" {
		due, err := time.Parse(time.RFC3339Nano, v.TimestampValue)
		if err != nil {
			return service.Task{}, fmt.Errorf("task %s: invalid dueDate: %w", t.ID, err)
		}
		t.DueDate = &due
	}
	if v, ok := doc.Fields[fieldCreatedAt]; ok && v.TimestampValue != "" {
		created, err := time.Parse(time.RFC3339Nano, v.TimestampValue)
		if err != nil {
			return service.Task{}, fmt.Errorf("task %s: invalid createdAt: %w", t.ID, err)
		}
		t.CreatedAt = created
	}
	return t, nil
}

// newDocID returns a random document id.
func newDocID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// docID returns the last path segment of a document name.
func docID(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}
