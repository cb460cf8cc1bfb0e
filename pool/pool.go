package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Pool.
type State int

const (
	// StateOpen accepts acquisitions.
	StateOpen State = iota
	// StateClosing rejects acquisitions and closes connections as they are
	// released.
	StateClosing
	// StateClosed has no connections left.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config configures a Pool.
type Config struct {
	// MinSize is the number of connections the pool keeps open once used.
	// Default: 1
	MinSize int

	// MaxSize bounds free, in-use and dialing connections together.
	// Default: 8
	MaxSize int

	// RecycleAge closes free connections idle for longer than this.
	// Default: 0 (never)
	RecycleAge time.Duration

	// DialTimeout bounds background dials that fill the pool to MinSize.
	// Default: 10s
	DialTimeout time.Duration
}

// Stats is a snapshot of pool accounting.
type Stats struct {
	State     State
	Size      int
	Free      int
	InUse     int
	Acquiring int
	Waiting   int
	MinSize   int
	MaxSize   int
}

// Pool is a bounded pool of connections to one backend URL.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Invariant: Size = Free + InUse + Acquiring <= MaxSize.
// - Acquire waits for a release when the pool is full, honoring ctx.
type Pool struct {
	url    string
	dialer Dialer
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	free      []*PooledConn
	used      map[*PooledConn]struct{}
	acquiring int
	filling   bool
	waiters   []chan struct{}
	drained   chan struct{}
}

// New creates a pool for url. No connection is dialed until first use.
func New(url string, dialer Dialer, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 8
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = 1
	}
	if cfg.MinSize > cfg.MaxSize {
		cfg.MinSize = cfg.MaxSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Pool{
		url:     url,
		dialer:  dialer,
		cfg:     cfg,
		logger:  logger.With().Str("component", "pool").Str("url", url).Logger(),
		used:    make(map[*PooledConn]struct{}),
		drained: make(chan struct{}),
	}
}

// URL returns the backend URL.
func (p *Pool) URL() string { return p.url }

// Stats returns a consistent snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		State:     p.state,
		Size:      p.sizeLocked(),
		Free:      len(p.free),
		InUse:     len(p.used),
		Acquiring: p.acquiring,
		Waiting:   len(p.waiters),
		MinSize:   p.cfg.MinSize,
		MaxSize:   p.cfg.MaxSize,
	}
}

// Acquire returns a free connection, dials a new one while the pool has
// room, or waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := time.Now()
	p.mu.Lock()
	for {
		if p.state != StateOpen {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		stale := p.purgeLocked(time.Now())
		if len(stale) > 0 {
			p.mu.Unlock()
			closeAll(stale)
			p.mu.Lock()
			continue
		}

		if len(p.free) > 0 {
			pc := p.free[0]
			p.free[0] = nil
			p.free = p.free[1:]
			p.used[pc] = struct{}{}
			p.fillLocked()
			p.mu.Unlock()
			observeAcquire(p.url, start)
			return pc, nil
		}

		if p.sizeLocked() < p.cfg.MaxSize {
			p.acquiring++
			p.mu.Unlock()

			pc, err := p.dial(ctx)

			p.mu.Lock()
			p.acquiring--
			if err != nil {
				p.notifyOneLocked()
				p.checkDrainedLocked()
				p.mu.Unlock()
				return nil, err
			}
			if p.state != StateOpen {
				p.checkDrainedLocked()
				p.mu.Unlock()
				_ = pc.Close()
				return nil, ErrPoolClosed
			}
			p.used[pc] = struct{}{}
			p.fillLocked()
			p.mu.Unlock()
			observeAcquire(p.url, start)
			return pc, nil
		}

		if err := p.waitLocked(ctx); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
}

// Release returns pc to the pool. A connection the pool no longer tracks as
// in use, such as a terminated one, is ignored; while closing, or when pc is
// no longer open, it is closed.
func (p *Pool) Release(pc *PooledConn) {
	p.mu.Lock()
	if _, ok := p.used[pc]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.used, pc)

	if p.state != StateOpen || !pc.Open() {
		p.notifyOneLocked()
		p.checkDrainedLocked()
		p.mu.Unlock()
		_ = pc.Close()
		return
	}

	pc.lastUsed = time.Now()
	p.free = append(p.free, pc)
	p.notifyOneLocked()
	p.mu.Unlock()
}

// Terminate force-closes an in-use pc and removes it from the pool. The pool
// keeps no reference to it afterwards, so a later Release or Terminate of pc
// is a no-op.
func (p *Pool) Terminate(pc *PooledConn) {
	p.mu.Lock()
	if _, ok := p.used[pc]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.used, pc)
	p.notifyOneLocked()
	p.checkDrainedLocked()
	p.mu.Unlock()

	_ = pc.Close()
	connectionsTerminated.WithLabelValues(p.url).Inc()
}

// Close stops accepting acquisitions and wakes every waiter. Connections
// already handed out are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateOpen {
		return
	}
	p.state = StateClosing
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
}

// TerminatePool closes the pool and force-closes every in-use connection.
func (p *Pool) TerminatePool() {
	p.Close()

	p.mu.Lock()
	used := make([]*PooledConn, 0, len(p.used))
	for pc := range p.used {
		used = append(used, pc)
	}
	p.mu.Unlock()

	for _, pc := range used {
		p.Terminate(pc)
	}
}

// WaitClosed closes free connections and waits until every in-use
// connection has been released or terminated, then marks the pool closed.
// Close or TerminatePool must be called first.
func (p *Pool) WaitClosed(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateOpen {
		p.mu.Unlock()
		return ErrPoolOpen
	}
	free := p.free
	p.free = nil
	p.checkDrainedLocked()
	drained := p.drained
	p.mu.Unlock()

	closeAll(free)

	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()
	return nil
}

// Prefill dials connections until the pool holds MinSize.
func (p *Pool) Prefill(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.state != StateOpen {
			p.mu.Unlock()
			return ErrPoolClosed
		}
		if p.sizeLocked() >= p.cfg.MinSize {
			p.mu.Unlock()
			return nil
		}
		p.acquiring++
		p.mu.Unlock()

		pc, err := p.dial(ctx)
		p.addFree(pc, err)
		if err != nil {
			return err
		}
	}
}

func (p *Pool) sizeLocked() int {
	return len(p.free) + len(p.used) + p.acquiring
}

func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	conn, err := p.dialer.Dial(ctx, p.url)
	if err != nil {
		connectionsDialed.WithLabelValues(p.url, "failure").Inc()
		p.logger.Warn().Err(err).Msg("dial failed")
		return nil, fmt.Errorf("pool: dial %s: %w", p.url, err)
	}
	connectionsDialed.WithLabelValues(p.url, "success").Inc()
	return &PooledConn{Conn: conn, pool: p, lastUsed: time.Now()}, nil
}

// addFree settles a dial started with acquiring++ by parking the result in
// the free list.
func (p *Pool) addFree(pc *PooledConn, err error) {
	p.mu.Lock()
	p.acquiring--
	if err != nil || p.state != StateOpen {
		p.notifyOneLocked()
		p.checkDrainedLocked()
		p.mu.Unlock()
		if pc != nil {
			_ = pc.Close()
		}
		return
	}
	p.free = append(p.free, pc)
	p.notifyOneLocked()
	p.mu.Unlock()
}

// fillLocked starts one background goroutine that dials up to MinSize.
func (p *Pool) fillLocked() {
	if p.filling || p.sizeLocked() >= p.cfg.MinSize {
		return
	}
	p.filling = true
	go func() {
		defer func() {
			p.mu.Lock()
			p.filling = false
			p.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
		defer cancel()
		if err := p.Prefill(ctx); err != nil && err != ErrPoolClosed {
			p.logger.Debug().Err(err).Msg("background fill stopped")
		}
	}()
}

// purgeLocked removes closed or idle-expired free connections and returns
// them for closing outside the lock.
func (p *Pool) purgeLocked(now time.Time) []*PooledConn {
	var stale []*PooledConn
	kept := p.free[:0]
	for _, pc := range p.free {
		expired := p.cfg.RecycleAge > 0 && now.Sub(pc.lastUsed) > p.cfg.RecycleAge
		if expired || !pc.Open() {
			stale = append(stale, pc)
			continue
		}
		kept = append(kept, pc)
	}
	for i := len(kept); i < len(p.free); i++ {
		p.free[i] = nil
	}
	p.free = kept
	if len(stale) > 0 {
		p.checkDrainedLocked()
	}
	return stale
}

// waitLocked parks the caller until a slot may be available. It is called
// and returns with p.mu held.
func (p *Pool) waitLocked(ctx context.Context) error {
	ch := make(chan struct{}, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		p.mu.Lock()
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		if !p.removeWaiterLocked(ch) {
			// Already woken: hand the wake-up to the next waiter.
			p.notifyOneLocked()
		}
		return ctx.Err()
	}
}

func (p *Pool) removeWaiterLocked(ch chan struct{}) bool {
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool) notifyOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	ch := p.waiters[0]
	p.waiters = p.waiters[1:]
	ch <- struct{}{}
}

func (p *Pool) checkDrainedLocked() {
	if p.state == StateOpen || p.sizeLocked() > 0 {
		return
	}
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}

func closeAll(conns []*PooledConn) {
	for _, pc := range conns {
		_ = pc.Close()
	}
}
