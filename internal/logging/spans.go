package logging

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLogger writes every finished span to a logrus logger at debug level.
type spanLogger struct {
	log log.FieldLogger
}

func (p spanLogger) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {}

func (p spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := log.Fields{
		"span":     s.Name(),
		"duration": s.EndTime().Sub(s.StartTime()).String(),
	}
	for _, kv := range s.Attributes() {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	entry := p.log.WithFields(fields)
	if s.Status().Code == codes.Error {
		entry.WithField("error", s.Status().Description).Debug("span failed")
		return
	}
	entry.Debug("span finished")
}

func (p spanLogger) Shutdown(ctx context.Context) error   { return nil }
func (p spanLogger) ForceFlush(ctx context.Context) error { return nil }

// NewTracerProvider returns a tracer provider that logs each span through
// logger. Used with --debug to show store calls and their latency.
func NewTracerProvider(logger log.FieldLogger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(spanLogger{log: logger}),
	)
}
