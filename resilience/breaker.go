package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name is the upstream URL the breaker protects.
	Name string

	// MaxFailures is the number of consecutive failed calls that opens
	// the breaker.
	// Default: 5
	MaxFailures int

	// Cooldown is how long an open breaker rejects calls before it lets a
	// single probe through.
	// Default: 30s
	Cooldown time.Duration

	Logger zerolog.Logger
}

// Breaker stops traffic to an upstream after consecutive failures.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - While half-open exactly one probe is in flight; its outcome closes or
//   reopens the breaker.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	logger      zerolog.Logger

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	circuitState.WithLabelValues(cfg.Name).Set(float64(BreakerClosed))
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		logger:      cfg.Logger,
	}
}

// Name returns the protected upstream.
func (b *Breaker) Name() string { return b.name }

// Allow admits one call. The caller must report the outcome through done.
func (b *Breaker) Allow() (done func(error), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())
	switch b.state {
	case BreakerOpen:
		return nil, ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probing {
			return nil, ErrCircuitOpen
		}
		b.probing = true
		return b.finishProbe, nil
	default:
		return b.finish, nil
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked(time.Now())
	return b.state
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil:
		b.failures = 0
	case countsAsFailure(err):
		b.failures++
		if b.state == BreakerClosed && b.failures >= b.maxFailures {
			b.transitionLocked(BreakerOpen)
		}
	}
}

func (b *Breaker) finishProbe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	switch {
	case err == nil:
		b.failures = 0
		b.transitionLocked(BreakerClosed)
	case countsAsFailure(err):
		b.failures++
		b.transitionLocked(BreakerOpen)
	}
}

func (b *Breaker) advanceLocked(now time.Time) {
	if b.state == BreakerOpen && now.Sub(b.openedAt) >= b.cooldown {
		b.transitionLocked(BreakerHalfOpen)
	}
}

func (b *Breaker) transitionLocked(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == BreakerOpen {
		b.openedAt = time.Now()
		circuitOpened.WithLabelValues(b.name).Inc()
	}
	circuitState.WithLabelValues(b.name).Set(float64(to))

	event := b.logger.Info()
	if to == BreakerOpen {
		event = b.logger.Warn()
	}
	event.Str("upstream", b.name).
		Stringer("from", from).
		Stringer("to", to).
		Int("failures", b.failures).
		Msg("circuit breaker state changed")
}

// countsAsFailure excludes cancellation by the caller, which says nothing
// about the upstream.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}
