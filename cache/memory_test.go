package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(MemoryConfig{})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitForLen(t *testing.T, c *MemoryCache, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for c.Len() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Len() = %d, want %d", c.Len(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()
	key := "steemd.database_api.get_block.params=[1000]"

	if val, ok := cache.Get(ctx, key); ok || val != nil {
		t.Fatalf("Get on empty cache = %q, %v", val, ok)
	}

	value := []byte(`{"jsonrpc":"2.0","result":{}}`)
	if err := cache.Set(ctx, key, value, 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := cache.Get(ctx, key); !ok || !bytes.Equal(got, value) {
		t.Errorf("Get = %q, %v, want %q, true", got, ok, value)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get after Delete should miss")
	}
	if err := cache.Delete(ctx, "nonexistent"); err != nil {
		t.Errorf("Delete of a missing key: %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "expiring", []byte("v"), 50*time.Millisecond)
	if _, ok := cache.Get(ctx, "expiring"); !ok {
		t.Fatal("Get immediately after Set should hit")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := cache.Get(ctx, "expiring"); ok {
		t.Error("Get after expiry should miss")
	}
	waitForLen(t, cache, 0)
}

func TestMemoryCache_ReadsDoNotExtendTTL(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "k", []byte("v"), 60*time.Millisecond)
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		_, _ = cache.Get(ctx, "k")
	}
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Error("reads must not keep an entry alive past its ttl")
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if item := cache.items.Get("forever"); item == nil || item.TTL() != ttlcache.NoTTL {
		t.Fatalf("item = %+v, want an entry without ttl", item)
	}
	if removed := cache.Purge(); removed != 0 {
		t.Errorf("Purge() removed %d, want 0", removed)
	}
}

func TestMemoryCache_NegativeTTLSkipsWrite(t *testing.T) {
	cache := newTestMemoryCache(t)
	_ = cache.Set(context.Background(), "k", []byte("v"), -time.Second)
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
}

func TestMemoryCache_OverwriteChangesTTL(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "b", []byte("b1"), 30*time.Millisecond)
	_ = cache.Set(ctx, "b", []byte("b2"), 0)
	time.Sleep(60 * time.Millisecond)

	got, ok := cache.Get(ctx, "b")
	if !ok || string(got) != "b2" {
		t.Errorf("Get(b) = %q, %v, want b2, true", got, ok)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestMemoryCache_Capacity(t *testing.T) {
	cache := NewMemoryCache(MemoryConfig{Capacity: 2})
	defer cache.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "a", []byte("1"), 0)
	_ = cache.Set(ctx, "b", []byte("2"), 0)
	_, _ = cache.Get(ctx, "a")
	_ = cache.Set(ctx, "c", []byte("3"), 0)

	if _, ok := cache.Get(ctx, "b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := cache.Get(ctx, "a"); !ok {
		t.Error("recently read entry should survive")
	}
}

func TestMemoryCache_MultiGetMultiSet(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	err := cache.MultiSet(ctx, []Entry{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}}, time.Minute)
	if err != nil {
		t.Fatalf("MultiSet: %v", err)
	}

	got := cache.MultiGet(ctx, []string{"a", "missing", "b"})
	if len(got) != 3 || string(got[0]) != "1" || got[1] != nil || string(got[2]) != "2" {
		t.Errorf("MultiGet = %q, want [1 <nil> 2]", got)
	}
}

func TestMemoryCache_ClearAndClose(t *testing.T) {
	cache := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", cache.Len())
	}

	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := cache.Set(ctx, "a", []byte("1"), time.Minute); err != ErrClosed {
		t.Errorf("Set after Close = %v, want %v", err, ErrClosed)
	}
	if err := cache.MultiSet(ctx, []Entry{{Key: "a"}}, 0); err != ErrClosed {
		t.Errorf("MultiSet after Close = %v, want %v", err, ErrClosed)
	}
}

// The background writer re-sets keys that requests are reading.
func TestMemoryCache_ConcurrentGetSetSameKey(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()
	const key = "steemd.database_api.get_dynamic_global_properties"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			_ = cache.Set(ctx, key, []byte(fmt.Sprintf(`{"head_block_number":%d}`, i)), time.Duration(i%3)*time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if v, ok := cache.Get(ctx, key); ok && len(v) == 0 {
				t.Error("hit returned an empty value")
				return
			}
		}
	}()
	wg.Wait()
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("steemd.database_api.get_block.params=[%d]", id%5)
			for j := 0; j < 500; j++ {
				switch j % 4 {
				case 0:
					_ = cache.Set(ctx, key, []byte("v"), time.Duration(j%3)*time.Millisecond)
				case 1:
					_, _ = cache.Get(ctx, key)
				case 2:
					_ = cache.Delete(ctx, key)
				case 3:
					cache.Purge()
				}
			}
		}(i)
	}
	wg.Wait()
}
