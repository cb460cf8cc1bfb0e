package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errUpstream = errors.New("upstream unavailable")

func call(t *testing.T, b *Breaker, err error) error {
	t.Helper()
	done, aerr := b.Allow()
	if aerr != nil {
		return aerr
	}
	done(err)
	return err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "ws://a", MaxFailures: 3, Cooldown: time.Hour, Logger: zerolog.Nop()})

	call(t, b, errUpstream)
	call(t, b, errUpstream)
	call(t, b, nil)
	if b.Failures() != 0 {
		t.Fatalf("Failures() after success = %d, want 0", b.Failures())
	}

	for range 3 {
		call(t, b, errUpstream)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}
	if err := call(t, b, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("call on open breaker error = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	call(t, b, context.Canceled)
	if b.State() != BreakerClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	call(t, b, errUpstream)
	time.Sleep(20 * time.Millisecond)

	if b.State() != BreakerHalfOpen {
		t.Fatalf("State() = %v, want half-open", b.State())
	}

	done, err := b.Allow()
	if err != nil {
		t.Fatalf("first probe Allow() error = %v", err)
	}
	if _, err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe Allow() error = %v, want ErrCircuitOpen", err)
	}

	done(nil)
	if b.State() != BreakerClosed {
		t.Errorf("State() after successful probe = %v, want closed", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	call(t, b, errUpstream)
	time.Sleep(20 * time.Millisecond)

	call(t, b, ErrTimeout)
	if b.State() != BreakerOpen {
		t.Errorf("State() after failed probe = %v, want open", b.State())
	}
}

func TestBreaker_CancelledProbeFreesSlot(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	call(t, b, errUpstream)
	time.Sleep(20 * time.Millisecond)

	call(t, b, context.Canceled)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("State() = %v, want half-open", b.State())
	}
	if err := call(t, b, nil); err != nil {
		t.Errorf("next probe error = %v", err)
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1000, Cooldown: time.Hour})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = errUpstream
			}
			if done, aerr := b.Allow(); aerr == nil {
				done(err)
			}
		}()
	}
	wg.Wait()

	if b.State() != BreakerClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreakerState_String(t *testing.T) {
	tests := map[BreakerState]string{
		BreakerClosed:   "closed",
		BreakerOpen:     "open",
		BreakerHalfOpen: "half-open",
		BreakerState(9): "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}
