package health

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds one run of all checks. A check still running when it
	// expires is reported unhealthy.
	// Default: 10s
	Timeout time.Duration

	// CacheTTL reuses the last report for this long, so frequent load
	// balancer probes do not ping Redis on every request.
	// Default: 0 (no caching)
	CacheTTL time.Duration
}

// Report is the combined outcome of one run of every checker.
type Report struct {
	// Status is the worst status among Results; healthy when empty.
	Status    Status
	Results   map[string]Result
	CheckedAt time.Time
}

// Aggregator runs the registered checkers concurrently.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent Run calls share one
//   run of the checkers.
// - Reports returned by Run must not be modified.
type Aggregator struct {
	timeout  time.Duration
	cacheTTL time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker

	flight singleflight.Group
	last   atomic.Pointer[Report]
}

// NewAggregator creates an Aggregator with no checkers.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		checkers: make(map[string]Checker),
	}
}

// Register adds c under c.Name(), replacing a checker of the same name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	a.checkers[c.Name()] = c
	a.mu.Unlock()
	a.last.Store(nil)
}

// Names returns the sorted names of the registered checkers.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.checkers))
	for name := range a.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run returns a report no older than CacheTTL.
func (a *Aggregator) Run(ctx context.Context) *Report {
	if r := a.last.Load(); r != nil && time.Since(r.CheckedAt) < a.cacheTTL {
		return r
	}
	v, _, _ := a.flight.Do("run", func() (any, error) {
		r := a.run(ctx)
		a.last.Store(r)
		return r, nil
	})
	return v.(*Report)
}

func (a *Aggregator) run(ctx context.Context) *Report {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Status:    StatusHealthy,
		Results:   make(map[string]Result, len(checkers)),
		CheckedAt: time.Now(),
	}
	for i, c := range checkers {
		report.Results[c.Name()] = results[i]
		report.Status = max(report.Status, results[i].Status)
	}
	return report
}

// runCheck abandons c once ctx is done; c keeps running in the background
// until it honors ctx.
func runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- c.Check(ctx)
	}()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	return r
}
