package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryConfig configures a MemoryCache.
type MemoryConfig struct {
	// Capacity bounds the number of entries; the least recently used entry
	// is evicted to make room. Default: 0 (unbounded)
	Capacity uint64
}

// MemoryCache is the in-process cache tier. Entries expire individually;
// one background loop deletes them as they expire.
type MemoryCache struct {
	items     *ttlcache.Cache[string, []byte]
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewMemoryCache creates a memory tier and starts its expiry loop.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	opts := []ttlcache.Option[string, []byte]{
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](cfg.Capacity))
	}
	c := &MemoryCache{items: ttlcache.New[string, []byte](opts...)}
	go c.items.Start()
	return c
}

// Get returns the value under key unless it is missing or expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// MultiGet is positional with keys; misses are nil.
func (c *MemoryCache) MultiGet(ctx context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		out[i], _ = c.Get(ctx, key)
	}
	return out
}

// Set stores value under key. A ttl of 0 never expires; a negative ttl
// stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.set(key, value, ttl)
	return nil
}

// MultiSet stores entries sharing one ttl.
func (c *MemoryCache) MultiSet(_ context.Context, entries []Entry, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for _, e := range entries {
		c.set(e.Key, e.Value, ttl)
	}
	return nil
}

func (c *MemoryCache) set(key string, value []byte, ttl time.Duration) {
	switch {
	case ttl < 0:
		return
	case ttl == 0:
		ttl = ttlcache.NoTTL
	}
	c.items.Set(key, value, ttl)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.items.DeleteAll()
	return nil
}

// Close stops the expiry loop and drops all entries. Later writes fail with
// ErrClosed.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.items.Stop()
		c.items.DeleteAll()
	})
	return nil
}

// Len returns the number of stored entries, including expired entries the
// expiry loop has not deleted yet.
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// Purge deletes expired entries now and returns how many were removed.
func (c *MemoryCache) Purge() int {
	before := c.items.Len()
	c.items.DeleteExpired()
	return before - c.items.Len()
}

var _ Backend = (*MemoryCache)(nil)
