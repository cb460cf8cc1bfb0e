package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/rpcrelay/pool"
)

// PingChecker reports a component healthy while its Ping succeeds.
type PingChecker struct {
	name    string
	pinger  Pinger
	timeout time.Duration
}

// NewPingChecker creates a checker around pinger. timeout bounds each ping.
// Default timeout: 2s
func NewPingChecker(name string, pinger Pinger, timeout time.Duration) *PingChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingChecker{name: name, pinger: pinger, timeout: timeout}
}

// Name returns the name of this checker.
func (p *PingChecker) Name() string {
	return p.name
}

// Check pings the component.
func (p *PingChecker) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pinger.Ping(ctx); err != nil {
		return Unhealthy(p.name+" unreachable", err)
	}
	return Healthy(p.name + " reachable")
}

// PoolCheckerConfig configures the connection pool checker.
type PoolCheckerConfig struct {
	// SaturationThreshold is the in-use fraction of MaxSize at which a pool
	// is reported degraded. Default: 0.9
	SaturationThreshold float64
}

// PoolChecker reports saturation of the upstream connection pools.
type PoolChecker struct {
	config PoolCheckerConfig
	stats  func() map[string]pool.Stats
}

// NewPoolChecker creates a checker over a snapshot source, typically
// pool.Registry.Stats.
func NewPoolChecker(stats func() map[string]pool.Stats, config PoolCheckerConfig) *PoolChecker {
	if config.SaturationThreshold <= 0 || config.SaturationThreshold > 1 {
		config.SaturationThreshold = 0.9
	}
	return &PoolChecker{config: config, stats: stats}
}

// Name returns the name of this checker.
func (p *PoolChecker) Name() string {
	return "pools"
}

// Check reports degraded when any pool has waiters or is saturated.
func (p *PoolChecker) Check(ctx context.Context) Result {
	snapshot := p.stats()

	urls := make([]string, 0, len(snapshot))
	for url := range snapshot {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	details := make(map[string]any, len(snapshot))
	var saturated []string
	for _, url := range urls {
		s := snapshot[url]
		details[url] = map[string]any{
			"state":     s.State.String(),
			"size":      s.Size,
			"free":      s.Free,
			"in_use":    s.InUse,
			"acquiring": s.Acquiring,
			"waiting":   s.Waiting,
			"max_size":  s.MaxSize,
		}
		if s.Waiting > 0 || float64(s.InUse) >= p.config.SaturationThreshold*float64(s.MaxSize) {
			saturated = append(saturated, url)
		}
	}

	if len(saturated) > 0 {
		return Degraded(fmt.Sprintf("%d of %d pools saturated", len(saturated), len(snapshot))).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d pools", len(snapshot))).WithDetails(details)
}

// BlockCheckerConfig configures the irreversible block checker.
type BlockCheckerConfig struct {
	// MaxStale is how long the last irreversible block may stand still
	// before the check degrades. Default: 1m
	MaxStale time.Duration
}

// BlockChecker reports whether the observed last irreversible block keeps
// advancing. A stalled number means irreversible-only cache entries stop
// being written.
type BlockChecker struct {
	config BlockCheckerConfig
	lib    func() uint64
	now    func() time.Time

	mu       sync.Mutex
	last     uint64
	advanced time.Time
}

// NewBlockChecker creates a checker over lib, typically
// cache.Group.LastIrreversibleBlock.
func NewBlockChecker(lib func() uint64, config BlockCheckerConfig) *BlockChecker {
	if config.MaxStale <= 0 {
		config.MaxStale = time.Minute
	}
	return &BlockChecker{config: config, lib: lib, now: time.Now}
}

// Name returns the name of this checker.
func (b *BlockChecker) Name() string {
	return "last_irreversible_block"
}

// Check compares the current number with the last one seen.
func (b *BlockChecker) Check(ctx context.Context) Result {
	current := b.lib()
	now := b.now()

	b.mu.Lock()
	if current != b.last || b.advanced.IsZero() {
		b.last = current
		b.advanced = now
	}
	stale := now.Sub(b.advanced)
	b.mu.Unlock()

	details := map[string]any{
		"last_irreversible_block_num": current,
		"unchanged_for":               stale.String(),
	}

	if current == 0 {
		return Degraded("no irreversible block observed yet").WithDetails(details)
	}
	if stale > b.config.MaxStale {
		return Degraded(fmt.Sprintf("irreversible block %d unchanged for %s", current, stale.Truncate(time.Second))).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("irreversible block %d", current)).WithDetails(details)
}

// BreakerChecker degrades while any upstream circuit breaker is open.
type BreakerChecker struct {
	open func() []string
}

// NewBreakerChecker creates a checker over open, typically
// resilience.Executor.OpenBreakers.
func NewBreakerChecker(open func() []string) *BreakerChecker {
	return &BreakerChecker{open: open}
}

// Name returns the name of this checker.
func (b *BreakerChecker) Name() string {
	return "upstream_breakers"
}

// Check lists the upstreams currently rejected by their breaker.
func (b *BreakerChecker) Check(ctx context.Context) Result {
	open := b.open()
	if len(open) == 0 {
		return Healthy("all breakers closed")
	}
	return Degraded(fmt.Sprintf("%d upstreams unavailable", len(open))).
		WithDetails(map[string]any{"open": open})
}
