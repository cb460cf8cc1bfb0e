package observe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// CallResult is the outcome of one call.
type CallResult struct {
	Response *jsonrpc.Response
	CacheHit bool
}

// CallFunc answers one JSON-RPC call.
type CallFunc func(ctx context.Context, meta CallMeta) (CallResult, error)

// Middleware wraps call handling with a span, metrics and a log line.
//
// Contract:
//   - Concurrency: Wrap returns a CallFunc safe for concurrent use.
//   - Errors: errors and results of the wrapped function pass through unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  zerolog.Logger
}

// NewMiddleware creates a Middleware. Nil tracer or metrics are replaced by
// no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger zerolog.Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap instruments fn.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta CallMeta) (CallResult, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, result, err)
		m.metrics.RecordCall(ctx, meta, duration, result, err)

		logger := WithCall(m.logger, meta)
		switch {
		case err != nil:
			logger.Error().Err(err).Dur("duration", duration).Msg("call failed")
		case result.Response != nil && result.Response.IsError():
			logger.Info().
				RawJSON("error", result.Response.Error).
				Dur("duration", duration).
				Msg("call answered with error")
		default:
			logger.Debug().
				Bool("cache_hit", result.CacheHit).
				Dur("duration", duration).
				Msg("call completed")
		}
		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
