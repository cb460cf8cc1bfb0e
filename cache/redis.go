package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	// KeyPrefix namespaces keys so that Clear only touches this cache's data.
	// Default: "" (Clear flushes the selected database)
	KeyPrefix string

	// CompressionThreshold is the minimum value size, in bytes, that is
	// zstd-compressed before storage. Negative disables compression.
	// Default: 512
	CompressionThreshold int

	// ScanCount is the COUNT hint used when clearing a prefix.
	// Default: 1000
	ScanCount int64
}

// RedisCache is the shared cache tier backed by Redis.
//
// Values at or above the compression threshold are stored zstd-compressed;
// reads detect compressed values by the zstd frame magic number, so
// compression settings can change without invalidating stored data.
type RedisCache struct {
	client  redis.UniversalClient
	cfg     RedisConfig
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  zerolog.Logger

	closeOnce sync.Once
}

// zstdMagic is the zstd frame header.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// NewRedisCache wraps client. The cache owns client and closes it on Close.
func NewRedisCache(client redis.UniversalClient, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	if client == nil {
		return nil, ErrNilBackend
	}
	if cfg.CompressionThreshold == 0 {
		cfg.CompressionThreshold = 512
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 1000
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("cache: create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("cache: create zstd decoder: %w", err)
	}

	return &RedisCache{
		client:  client,
		cfg:     cfg,
		encoder: encoder,
		decoder: decoder,
		logger:  logger.With().Str("component", "redis_cache").Logger(),
	}, nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves a cached value. Redis failures are logged and reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	value, err := c.decompress(raw)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to decompress cached value")
		return nil, false
	}
	return value, true
}

// MultiGet retrieves several values with one MGET.
func (c *RedisCache) MultiGet(ctx context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}

	values, err := c.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		c.logger.Warn().Err(err).Int("keys", len(keys)).Msg("redis mget failed")
		return out
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		value, err := c.decompress([]byte(s))
		if err != nil {
			c.logger.Warn().Err(err).Str("key", keys[i]).Msg("failed to decompress cached value")
			continue
		}
		out[i] = value
	}
	return out
}

// Set stores a value. TTL=0 means the value never expires.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(key), c.compress(value), ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// MultiSet stores several values sharing one TTL in a single pipeline.
func (c *RedisCache) MultiSet(ctx context.Context, entries []Entry, ttl time.Duration) error {
	if ttl < 0 || len(entries) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, c.key(e.Key), c.compress(e.Value), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: redis pipeline set: %w", err)
	}
	return nil
}

// Delete removes a cached value.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

// Clear removes every key under the configured prefix, or flushes the
// database when no prefix is configured.
func (c *RedisCache) Clear(ctx context.Context) error {
	if c.cfg.KeyPrefix == "" {
		return c.client.FlushDB(ctx).Err()
	}

	iter := c.client.Scan(ctx, 0, c.cfg.KeyPrefix+"*", c.cfg.ScanCount).Iterator()
	batch := make([]string, 0, c.cfg.ScanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= c.cfg.ScanCount {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache: redis clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache: redis clear: %w", err)
		}
	}
	return nil
}

// Close closes the client and releases the codec.
func (c *RedisCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.Close()
		_ = c.encoder.Close()
		c.decoder.Close()
	})
	return err
}

func (c *RedisCache) key(k string) string {
	return c.cfg.KeyPrefix + k
}

func (c *RedisCache) compress(value []byte) []byte {
	if c.cfg.CompressionThreshold < 0 || len(value) < c.cfg.CompressionThreshold {
		return value
	}
	compressed := c.encoder.EncodeAll(value, make([]byte, 0, len(value)/2))
	// Only use compression if it actually saves space
	if len(compressed) >= len(value) {
		return value
	}
	return compressed
}

func (c *RedisCache) decompress(data []byte) ([]byte, error) {
	if !isCompressed(data) {
		return data, nil
	}
	return c.decoder.DecodeAll(data, nil)
}

func isCompressed(data []byte) bool {
	return len(data) >= len(zstdMagic) &&
		data[0] == zstdMagic[0] &&
		data[1] == zstdMagic[1] &&
		data[2] == zstdMagic[2] &&
		data[3] == zstdMagic[3]
}

// Ensure RedisCache implements Backend
var _ Backend = (*RedisCache)(nil)
