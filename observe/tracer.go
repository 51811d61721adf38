package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta carries per-ToolCall metadata used to name spans, metrics, and
// log fields. Namespace holds the UpstreamKind (e.g. "download"); Name holds
// the tool name (e.g. "getQueue"); CorrelationID, when set, is attached to
// every span/log line the call produces so it can be joined against the
// event bus history for the same correlation chain.
type CallMeta struct {
	ID            string   // Fully qualified tool ID (namespace.name or just name)
	Namespace     string   // UpstreamKind (may be empty)
	Name          string   // Tool name (required)
	Version       string   // Upstream version (optional)
	Tags          []string // Tags for discovery (optional)
	Category      string   // Tool category (optional)
	CorrelationID string   // Correlation id of the triggering ToolCall, if any
}

// SpanName returns the deterministic span name for this tool.
// Format: tool.exec.<namespace>.<name> or tool.exec.<name>
func (m CallMeta) SpanName() string {
	if m.Namespace != "" {
		return "tool.exec." + m.Namespace + "." + m.Name
	}
	return "tool.exec." + m.Name
}

// ToolID returns the fully qualified tool identifier.
// If ID field is set, returns it. Otherwise constructs from namespace and name.
func (m CallMeta) ToolID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Namespace != "" {
		return m.Namespace + "." + m.Name
	}
	return m.Name
}

// Validate reports ErrMissingToolName when Name is empty.
func (m CallMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingToolName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with tool-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan returns a context derived from ctx, so cancellation/deadlines carry over; it returns no error.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for tool execution.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NewTracer wraps an OpenTelemetry trace.Tracer (e.g. Observer.Tracer()) as
// an observe.Tracer suitable for Middleware. Exported so callers outside
// this package (the orchestrator, cmd/gatewayd) can build one from an
// Observer without reaching into unexported constructors.
func NewTracer(t trace.Tracer) Tracer {
	return newTracer(t)
}

// NewNoopTracer returns a Tracer that starts/ends spans against an
// OpenTelemetry no-op provider. Used as the default when a component is
// constructed without an Observer.
func NewNoopTracer() Tracer {
	return newNoopTracer()
}

// StartSpan starts a new span with tool metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	// Build attributes
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
		attribute.Bool("tool.error", false), // Will be updated in EndSpan if error
	}

	// Add namespace if present
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("tool.namespace", meta.Namespace))
	}

	// Add optional attributes if present
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("tool.version", meta.Version))
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("tool.category", meta.Category))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("tool.tags", meta.Tags))
	}
	if meta.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation.id", meta.CorrelationID))
	}

	ctx, span := t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("tool.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
