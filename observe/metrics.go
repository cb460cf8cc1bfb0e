package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, result CallResult, err error)
}

type metricsImpl struct {
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	hits     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the call instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	calls, err := meter.Int64Counter(
		"rpcrelay.call.total",
		metric.WithDescription("Total number of JSON-RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"rpcrelay.call.errors",
		metric.WithDescription("JSON-RPC calls answered with an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"rpcrelay.call.cache_hits",
		metric.WithDescription("JSON-RPC calls answered from cache"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"rpcrelay.call.duration_ms",
		metric.WithDescription("JSON-RPC call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{calls: calls, errors: errs, hits: hits, duration: duration}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, result CallResult, err error) {
	attrs := meta.attributes()
	opt := metric.WithAttributes(attrs...)

	m.calls.Add(ctx, 1, opt)
	if err != nil || (result.Response != nil && result.Response.IsError()) {
		m.errors.Add(ctx, 1, opt)
	}
	if result.CacheHit {
		m.hits.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		append(attrs, attribute.Bool("rpcrelay.cache_hit", result.CacheHit))...,
	))
}

type noopMetrics struct{}

func (noopMetrics) RecordCall(context.Context, CallMeta, time.Duration, CallResult, error) {}
