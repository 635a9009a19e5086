package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskmate/service"

// tracedStore wraps a Store with one span per operation.
type tracedStore struct {
	next Store
}

// WithTracing returns a Store that records an OpenTelemetry span around
// every call to next. Spans go to the global tracer provider.
func WithTracing(next Store) Store {
	return &tracedStore{next: next}
}

func (s *tracedStore) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("store.error_kind", KindOf(err).String()))
		span.SetStatus(codes.Error, Message(err, "store error"))
	}
	span.End()
}

func (s *tracedStore) ListTasks(ctx context.Context, ownerID string) ([]Task, error) {
	ctx, span := s.start(ctx, "store.ListTasks", attribute.String("task.owner", ownerID))
	tasks, err := s.next.ListTasks(ctx, ownerID)
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	finish(span, err)
	return tasks, err
}

func (s *tracedStore) CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error) {
	ctx, span := s.start(ctx, "store.CreateTask",
		attribute.String("task.owner", ownerID),
		attribute.Bool("task.has_due_date", dueDate != nil),
	)
	id, err := s.next.CreateTask(ctx, title, ownerID, dueDate)
	if id != "" {
		span.SetAttributes(attribute.String("task.id", id))
	}
	finish(span, err)
	return id, err
}

func (s *tracedStore) SetTaskCompletion(ctx context.Context, taskID string, completed bool) error {
	ctx, span := s.start(ctx, "store.SetTaskCompletion",
		attribute.String("task.id", taskID),
		attribute.Bool("task.completed", completed),
	)
	err := s.next.SetTaskCompletion(ctx, taskID, completed)
	finish(span, err)
	return err
}

func (s *tracedStore) DeleteTask(ctx context.Context, taskID string) error {
	ctx, span := s.start(ctx, "store.DeleteTask", attribute.String("task.id", taskID))
	err := s.next.DeleteTask(ctx, taskID)
	finish(span, err)
	return err
}
