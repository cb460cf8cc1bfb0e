package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta identifies one JSON-RPC call for telemetry.
type CallMeta struct {
	URN       string // canonical URN of the call
	Namespace string
	API       string // empty for non-appbase namespaces
	Method    string
	Upstream  string // resolved backend URL, empty before resolution
	RequestID string // inbound request id (x-rpcrelay-request-id)
	Batch     bool   // member of a batch request
}

// SpanName returns the span name for this call.
// Format: rpcrelay.call.<namespace>.<api>.<method> or rpcrelay.call.<namespace>.<method>
func (m CallMeta) SpanName() string {
	if m.API != "" {
		return "rpcrelay.call." + m.Namespace + "." + m.API + "." + m.Method
	}
	return "rpcrelay.call." + m.Namespace + "." + m.Method
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", m.Method),
		attribute.String("rpcrelay.namespace", m.Namespace),
	}
	if m.API != "" {
		attrs = append(attrs, attribute.String("rpcrelay.api", m.API))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with call-scoped spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome.
	EndSpan(span trace.Span, result CallResult, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer over t.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(),
		attribute.String("rpcrelay.urn", meta.URN),
		attribute.Bool("rpcrelay.batch", meta.Batch),
	)
	if meta.Upstream != "" {
		attrs = append(attrs, attribute.String("rpcrelay.upstream", meta.Upstream))
	}
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String("rpcrelay.request_id", meta.RequestID))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, result CallResult, err error) {
	span.SetAttributes(attribute.Bool("rpcrelay.cache_hit", result.CacheHit))
	switch {
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	case result.Response != nil && result.Response.IsError():
		span.SetAttributes(attribute.String("rpc.jsonrpc.error", string(result.Response.Error)))
		span.SetStatus(codes.Error, "error response")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, result CallResult, err error) {
	span.End()
}
