package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// BackoffConfig configures the delay between attempts of one upstream call.
type BackoffConfig struct {
	// Initial is the delay before the second attempt. It doubles for every
	// later attempt.
	// Default: 50ms
	Initial time.Duration

	// Max caps the delay.
	// Default: 1s
	Max time.Duration

	// Jitter spreads each delay over [d/2, d) so retries against a
	// recovering upstream do not arrive in lockstep.
	Jitter bool
}

// Backoff computes retry delays.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  bool
}

// NewBackoff creates a Backoff.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = 50 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = time.Second
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	return &Backoff{initial: cfg.Initial, max: cfg.Max, jitter: cfg.Jitter}
}

// Delay returns the wait after the given failed attempt, counting from 1.
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.initial
	for i := 1; i < attempt && d < b.max; i++ {
		d *= 2
	}
	if d > b.max {
		d = b.max
	}
	if b.jitter && d >= 2 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d = d/2 + time.Duration(rand.Int64N(int64(d/2)))
	}
	return d
}

// wait sleeps for the delay after attempt unless ctx ends first.
func (b *Backoff) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retryable reports whether an upstream failure is worth another attempt.
// Caller cancellation and local rejections (open circuit, full bulkhead) are
// not.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrBulkheadFull):
		return false
	default:
		return true
	}
}
