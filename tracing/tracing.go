// Package tracing defines a span-shaped tracing interface compatible with
// OpenTelemetry's Tracer/Span shape, without importing the OTel SDK
// directly. A host application that already runs otel wires its own Tracer
// implementation in; the default is a no-op.
package tracing

import "context"

// Span represents one unit of traced work (one dispatch, one middleware
// step, one handler invocation).
type Span interface {
	// SetAttribute attaches a key/value pair to the span.
	SetAttribute(key string, value any)
	// RecordError marks the span as failed and attaches err.
	RecordError(err error)
	// End closes the span.
	End()
}

// Tracer starts spans. StartSpan returns the context carrying the new span
// alongside the span itself, mirroring otel.Tracer.Start.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Noop is a Tracer whose spans do nothing. It is the default Tracer until a
// host application supplies its own via Config.Tracer.
type Noop struct{}

func (Noop) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(key string, value any) {}
func (noopSpan) RecordError(err error)              {}
func (noopSpan) End()                               {}

var (
	_ Tracer = Noop{}
	_ Span   = noopSpan{}
)
