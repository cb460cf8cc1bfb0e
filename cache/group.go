package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/rpcrelay/upstream"
)

// Speed orders tiers for reads: fast tiers are consulted first.
type Speed int

const (
	// SpeedFast marks an in-process tier.
	SpeedFast Speed = iota
	// SpeedSlow marks a shared, network backed tier.
	SpeedSlow
)

// String implements fmt.Stringer.
func (s Speed) String() string {
	if s == SpeedFast {
		return "fast"
	}
	return "slow"
}

// Tier is one member of a Group.
type Tier struct {
	// Name labels the tier in logs and metrics.
	Name    string
	Backend Backend
	Read    bool
	Write   bool
	Speed   Speed
}

// GroupConfig configures a Group.
type GroupConfig struct {
	// Backfill copies values found in a slow tier into the fast writable
	// tiers.
	// Default: false
	Backfill bool

	// BackfillTTL is the expiry of backfilled values.
	// Default: 60s
	BackfillTTL time.Duration

	// Workers bounds concurrent background writes.
	// Default: 8
	Workers int

	// WriteTimeout bounds each background write.
	// Default: 5s
	WriteTimeout time.Duration
}

// Item is a key/value pair for Group.MultiSet.
type Item struct {
	Key   string
	Value []byte
	TTL   upstream.TTL
}

// Group is an ordered set of cache tiers with JSON-RPC aware operations.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Get is sequential across read tiers, fast first; the first hit wins.
// - Set fans out to every write tier concurrently and waits for all of them.
// - TTLs NoCache and NoExpireIfIrreversible are never written by Set/MultiSet;
//   the JSON-RPC operations resolve NoExpireIfIrreversible before writing.
type Group struct {
	tiers      []Tier
	readTiers  []Tier
	writeTiers []Tier
	fastWrite  []Tier
	cfg        GroupConfig
	logger     zerolog.Logger

	lib    atomic.Uint64
	writer pond.Pool
	closed atomic.Bool
}

// NewGroup builds a group. Tiers are ordered fast first, keeping the given
// order within a speed.
func NewGroup(tiers []Tier, cfg GroupConfig, logger zerolog.Logger) (*Group, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("cache: group needs at least one tier: %w", ErrNilBackend)
	}
	for _, t := range tiers {
		if t.Backend == nil {
			return nil, fmt.Errorf("cache: tier %q: %w", t.Name, ErrNilBackend)
		}
	}
	if cfg.BackfillTTL <= 0 {
		cfg.BackfillTTL = 60 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	ordered := make([]Tier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Speed < ordered[j].Speed })

	g := &Group{
		tiers:  ordered,
		cfg:    cfg,
		logger: logger.With().Str("component", "cache_group").Logger(),
		writer: pond.NewPool(cfg.Workers),
	}
	for _, t := range ordered {
		if t.Read {
			g.readTiers = append(g.readTiers, t)
		}
		if t.Write {
			g.writeTiers = append(g.writeTiers, t)
			if t.Speed == SpeedFast {
				g.fastWrite = append(g.fastWrite, t)
			}
		}
	}
	return g, nil
}

// Tiers returns the tiers in read order.
func (g *Group) Tiers() []Tier {
	out := make([]Tier, len(g.tiers))
	copy(out, g.tiers)
	return out
}

// Get returns the value from the first read tier that has key.
func (g *Group) Get(ctx context.Context, key string) ([]byte, bool) {
	for _, t := range g.readTiers {
		if v, ok := t.Backend.Get(ctx, key); ok {
			cacheHits.WithLabelValues(t.Name).Inc()
			if t.Speed == SpeedSlow {
				g.backfill([]Entry{{Key: key, Value: v}})
			}
			return v, true
		}
	}
	cacheMisses.Inc()
	return nil, false
}

// MultiGet returns values positionally; misses are nil. Each tier is only
// asked for keys that earlier tiers did not resolve.
func (g *Group) MultiGet(ctx context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	pending := make([]int, len(keys))
	for i := range keys {
		pending[i] = i
	}

	for _, t := range g.readTiers {
		if len(pending) == 0 {
			break
		}
		sub := make([]string, len(pending))
		for i, idx := range pending {
			sub[i] = keys[idx]
		}

		values := t.Backend.MultiGet(ctx, sub)
		var (
			still  []int
			filled []Entry
		)
		for i, idx := range pending {
			if i < len(values) && values[i] != nil {
				out[idx] = values[i]
				cacheHits.WithLabelValues(t.Name).Inc()
				filled = append(filled, Entry{Key: keys[idx], Value: values[i]})
				continue
			}
			still = append(still, idx)
		}
		if t.Speed == SpeedSlow && len(filled) > 0 {
			g.backfill(filled)
		}
		pending = still
	}

	if len(pending) > 0 {
		cacheMisses.Add(float64(len(pending)))
	}
	return out
}

// Set writes value to every write tier concurrently.
func (g *Group) Set(ctx context.Context, key string, value []byte, ttl upstream.TTL) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	d, ok := storeDuration(ttl)
	if !ok {
		cacheSkipped.WithLabelValues(ttl.String()).Inc()
		return nil
	}
	return g.write(ctx, g.writeTiers, []Entry{{Key: key, Value: value}}, d)
}

// MultiSet writes items to every write tier, batching items that share a TTL.
func (g *Group) MultiSet(ctx context.Context, items []Item) error {
	byTTL := make(map[time.Duration][]Entry)
	for _, it := range items {
		if err := ValidateKey(it.Key); err != nil {
			g.logger.Debug().Err(err).Msg("skipping invalid cache key")
			continue
		}
		d, ok := storeDuration(it.TTL)
		if !ok {
			cacheSkipped.WithLabelValues(it.TTL.String()).Inc()
			continue
		}
		byTTL[d] = append(byTTL[d], Entry{Key: it.Key, Value: it.Value})
	}

	eg, ctx := errgroup.WithContext(ctx)
	for d, entries := range byTTL {
		eg.Go(func() error {
			return g.write(ctx, g.writeTiers, entries, d)
		})
	}
	return eg.Wait()
}

// Delete removes key from every write tier.
func (g *Group) Delete(ctx context.Context, key string) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range g.writeTiers {
		eg.Go(func() error {
			return t.Backend.Delete(ctx, key)
		})
	}
	return eg.Wait()
}

// Clear clears every write tier.
func (g *Group) Clear(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range g.writeTiers {
		eg.Go(func() error {
			return t.Backend.Clear(ctx)
		})
	}
	return eg.Wait()
}

// LastIrreversibleBlock returns the last irreversible block number known to
// the group, or 0.
func (g *Group) LastIrreversibleBlock() uint64 {
	return g.lib.Load()
}

// SetLastIrreversibleBlock raises the last irreversible block number. Lower
// values are ignored; it reports whether the value changed.
func (g *Group) SetLastIrreversibleBlock(n uint64) bool {
	for {
		cur := g.lib.Load()
		if n <= cur {
			return false
		}
		if g.lib.CompareAndSwap(cur, n) {
			lastIrreversibleBlock.Set(float64(n))
			return true
		}
	}
}

// Close drains background writes and closes every tier.
func (g *Group) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.writer.StopAndWait()

	var errs []error
	for _, t := range g.tiers {
		if err := t.Backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: close tier %q: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// submit runs fn on the background writer with its own deadline.
func (g *Group) submit(fn func(ctx context.Context)) {
	if g.closed.Load() {
		return
	}
	g.writer.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.WriteTimeout)
		defer cancel()
		fn(ctx)
	})
}

func (g *Group) backfill(entries []Entry) {
	if !g.cfg.Backfill || len(g.fastWrite) == 0 {
		return
	}
	g.submit(func(ctx context.Context) {
		if err := g.write(ctx, g.fastWrite, entries, g.cfg.BackfillTTL); err != nil {
			g.logger.Debug().Err(err).Int("entries", len(entries)).Msg("backfill failed")
		}
	})
}

func (g *Group) write(ctx context.Context, tiers []Tier, entries []Entry, ttl time.Duration) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range tiers {
		eg.Go(func() error {
			var err error
			if len(entries) == 1 {
				err = t.Backend.Set(ctx, entries[0].Key, entries[0].Value, ttl)
			} else {
				err = t.Backend.MultiSet(ctx, entries, ttl)
			}
			if err != nil {
				cacheWrites.WithLabelValues(t.Name, resultFailure).Inc()
				return fmt.Errorf("cache: tier %q: %w", t.Name, err)
			}
			cacheWrites.WithLabelValues(t.Name, resultSuccess).Inc()
			return nil
		})
	}
	return eg.Wait()
}

// storeDuration maps a TTL onto a backend expiry. ok is false for TTLs that
// must not be written as-is.
func storeDuration(ttl upstream.TTL) (d time.Duration, ok bool) {
	switch ttl.Kind() {
	case upstream.TTLSeconds:
		return ttl.Duration(), true
	case upstream.TTLNoExpire:
		return 0, true
	default:
		return 0, false
	}
}
