package resilience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Policy is the resilience policy of one upstream call, resolved per URN.
type Policy struct {
	// Upstream keys the breaker and bulkhead, usually the URL.
	Upstream string

	// Attempts is the total number of tries (retries + 1).
	Attempts int

	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration

	// Bulkhead enables the per-upstream in-flight bound.
	Bulkhead bool
}

// Executor runs upstream calls under a Policy.
type Executor struct {
	backoff   *Backoff
	breakers  *Registry[*Breaker]
	bulkheads *Registry[*Bulkhead]
	logger    zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. Without options it only retries and
// applies the per-attempt timeout.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.backoff == nil {
		e.backoff = NewBackoff(BackoffConfig{})
	}
	return e
}

// WithBackoff sets the delay between attempts.
func WithBackoff(b *Backoff) ExecutorOption {
	return func(e *Executor) {
		e.backoff = b
	}
}

// WithBreakers enables one breaker per upstream.
func WithBreakers(r *Registry[*Breaker]) ExecutorOption {
	return func(e *Executor) {
		e.breakers = r
	}
}

// WithBulkheads enables one bulkhead per upstream for policies that ask
// for it.
func WithBulkheads(r *Registry[*Bulkhead]) ExecutorOption {
	return func(e *Executor) {
		e.bulkheads = r
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger.With().Str("component", "resilience").Logger()
	}
}

// Breaker returns the breaker for upstream, if breakers are enabled.
func (e *Executor) Breaker(upstream string) (*Breaker, bool) {
	if e.breakers == nil {
		return nil, false
	}
	return e.breakers.Get(upstream), true
}

// OpenBreakers returns the sorted upstreams whose breaker currently rejects
// calls.
func (e *Executor) OpenBreakers() []string {
	if e.breakers == nil {
		return nil
	}
	var open []string
	e.breakers.Range(func(url string, b *Breaker) bool {
		if b.State() == BreakerOpen {
			open = append(open, url)
		}
		return true
	})
	sort.Strings(open)
	return open
}

// Execute runs op under p.
//
// Each attempt takes a bulkhead slot (when p asks for one), passes the
// upstream's breaker and runs under p.Timeout. Failed attempts are retried
// with backoff while Retryable; when more than one attempt failed the
// result wraps both ErrMaxRetriesExceeded and the last error.
func (e *Executor) Execute(ctx context.Context, p Policy, op func(context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if werr := e.backoff.wait(ctx, attempt-1); werr != nil {
				return werr
			}
			upstreamRetries.WithLabelValues(p.Upstream).Inc()
		}

		err = e.attempt(ctx, p, op)
		if err == nil {
			return nil
		}
		e.logger.Debug().
			Err(err).
			Str("upstream", p.Upstream).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Msg("upstream attempt failed")

		if !Retryable(err) {
			return err
		}
	}
	if attempts > 1 {
		return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempts, err)
	}
	return err
}

func (e *Executor) attempt(ctx context.Context, p Policy, op func(context.Context) error) error {
	if p.Bulkhead && e.bulkheads != nil {
		bh := e.bulkheads.Get(p.Upstream)
		if err := bh.Acquire(ctx); err != nil {
			return err
		}
		defer bh.Release()
	}

	if e.breakers != nil {
		done, err := e.breakers.Get(p.Upstream).Allow()
		if err != nil {
			return err
		}
		err = withTimeout(ctx, p.Timeout, op)
		done(err)
		return err
	}
	return withTimeout(ctx, p.Timeout, op)
}

// withTimeout runs op under timeout. Expiry of this timeout yields
// ErrTimeout; an earlier deadline or cancellation on ctx is returned as is.
func withTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
