package cache

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, cfg RedisConfig) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCache(client, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	c, _ := newTestRedisCache(t, RedisConfig{KeyPrefix: "rpcrelay:"})
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"result":1}`), time.Minute))
	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, `{"result":1}`, string(v))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	require.NoError(t, c.Ping(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestRedisCache(t, RedisConfig{KeyPrefix: "p:"})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "expiring", []byte("v"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))

	assert.Equal(t, 10*time.Second, mr.TTL("p:expiring"))
	assert.Equal(t, time.Duration(0), mr.TTL("p:forever"))

	mr.FastForward(11 * time.Second)
	_, ok := c.Get(ctx, "expiring")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestRedisCache_Compression(t *testing.T) {
	c, mr := newTestRedisCache(t, RedisConfig{CompressionThreshold: 64})
	ctx := context.Background()

	large := []byte(`{"jsonrpc":"2.0","result":"` + strings.Repeat("abcdef", 200) + `"}`)
	require.NoError(t, c.Set(ctx, "large", large, 0))
	require.NoError(t, c.Set(ctx, "small", []byte(`{"a":1}`), 0))

	stored, err := mr.Get("large")
	require.NoError(t, err)
	assert.True(t, isCompressed([]byte(stored)))
	assert.Less(t, len(stored), len(large))

	stored, err = mr.Get("small")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, stored)

	got, ok := c.Get(ctx, "large")
	require.True(t, ok)
	assert.True(t, bytes.Equal(large, got))

	values := c.MultiGet(ctx, []string{"large", "missing", "small"})
	require.Len(t, values, 3)
	assert.Equal(t, large, values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, `{"a":1}`, string(values[2]))
}

func TestRedisCache_CompressionDisabled(t *testing.T) {
	c, mr := newTestRedisCache(t, RedisConfig{CompressionThreshold: -1})
	large := []byte(strings.Repeat("x", 4096))
	require.NoError(t, c.Set(context.Background(), "k", large, 0))

	stored, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, string(large), stored)
}

func TestRedisCache_MultiSet(t *testing.T) {
	c, mr := newTestRedisCache(t, RedisConfig{KeyPrefix: "p:"})
	ctx := context.Background()

	err := c.MultiSet(ctx, []Entry{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}}, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL("p:a"))
	assert.Equal(t, 30*time.Second, mr.TTL("p:b"))
	got := c.MultiGet(ctx, []string{"a", "b"})
	assert.Equal(t, "1", string(got[0]))
	assert.Equal(t, "2", string(got[1]))
}

func TestRedisCache_ClearPrefix(t *testing.T) {
	c, mr := newTestRedisCache(t, RedisConfig{KeyPrefix: "p:", ScanCount: 2})
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.Set(ctx, k, []byte("v"), 0))
	}
	require.NoError(t, mr.Set("other", "keep"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{"other"}, mr.Keys())
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	c, err := NewRedisCache(client, RedisConfig{}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok, "a failing redis is a miss, not an error")
	assert.Len(t, c.MultiGet(context.Background(), []string{"a", "b"}), 2)
	assert.Error(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewRedisCache_NilClient(t *testing.T) {
	_, err := NewRedisCache(nil, RedisConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNilBackend)
}
