package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	// Name is the upstream URL the bulkhead protects.
	Name string

	// MaxConcurrent is the maximum number of in-flight calls.
	// Default: 64
	MaxConcurrent int

	// MaxWait is how long a call may wait for a slot. Zero rejects at once.
	MaxWait time.Duration
}

// Bulkhead bounds in-flight calls to one upstream. Websocket upstreams are
// already bounded by their connection pool; HTTP upstreams go through a
// Bulkhead instead.
type Bulkhead struct {
	name     string
	size     int64
	maxWait  time.Duration
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a Bulkhead.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 64
	}
	return &Bulkhead{
		name:    cfg.Name,
		size:    int64(cfg.MaxConcurrent),
		maxWait: cfg.MaxWait,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Acquire takes a slot or returns ErrBulkheadFull once MaxWait has passed.
// Cancellation of ctx is returned as is.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.inFlight.Add(1)
		return nil
	}
	if b.maxWait <= 0 {
		return b.reject()
	}

	wctx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return b.reject()
	}
	b.inFlight.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	b.inFlight.Add(-1)
	b.sem.Release(1)
}

// InFlight returns the number of held slots.
func (b *Bulkhead) InFlight() int { return int(b.inFlight.Load()) }

// Capacity returns MaxConcurrent.
func (b *Bulkhead) Capacity() int { return int(b.size) }

// Rejected returns the number of calls turned away.
func (b *Bulkhead) Rejected() int64 { return b.rejected.Load() }

func (b *Bulkhead) reject() error {
	b.rejected.Add(1)
	bulkheadRejected.WithLabelValues(b.name).Inc()
	return ErrBulkheadFull
}
