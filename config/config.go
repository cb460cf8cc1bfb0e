package config

import (
	"time"

	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/jonwraymond/rpcrelay/auth"
	"github.com/jonwraymond/rpcrelay/cache"
	"github.com/jonwraymond/rpcrelay/health"
	"github.com/jonwraymond/rpcrelay/observe"
	"github.com/jonwraymond/rpcrelay/pool"
	"github.com/jonwraymond/rpcrelay/resilience"
)

// Config is the complete process configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`

	// Upstreams is the path of the upstream JSON document.
	Upstreams string `mapstructure:"upstreams" validate:"required"`

	Logging    observe.LoggingConfig `mapstructure:"logging"`
	Telemetry  TelemetryConfig       `mapstructure:"telemetry"`
	Cache      CacheConfig           `mapstructure:"cache"`
	Pool       PoolConfig            `mapstructure:"pool"`
	Resilience ResilienceConfig      `mapstructure:"resilience"`
	RateLimit  RateLimitConfig       `mapstructure:"rate_limit"`
	Health     HealthConfig          `mapstructure:"health"`
	Auth       auth.Config           `mapstructure:"auth"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,listen_addr"`

	// BatchLimit is the maximum number of requests in one batch.
	BatchLimit int `mapstructure:"batch_limit" validate:"gte=1"`

	// RequestTimeout bounds the handling of one inbound request. 0 disables.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`

	// BodyLimit is an echo size string such as "1M".
	BodyLimit string `mapstructure:"body_limit"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName string                `mapstructure:"service_name" validate:"required"`
	Tracing     observe.TracingConfig `mapstructure:"tracing"`
	Metrics     observe.MetricsConfig `mapstructure:"metrics"`
}

// Observe returns the observe configuration for version.
func (c *Config) Observe(version string) observe.Config {
	return observe.Config{
		ServiceName: c.Telemetry.ServiceName,
		Version:     version,
		Tracing:     c.Telemetry.Tracing,
		Metrics:     c.Telemetry.Metrics,
		Logging:     c.Logging,
	}
}

// CacheConfig configures the cache tiers and the group over them.
type CacheConfig struct {
	Memory MemoryTierConfig `mapstructure:"memory"`
	Redis  RedisTierConfig  `mapstructure:"redis"`

	Backfill     bool          `mapstructure:"backfill"`
	BackfillTTL  time.Duration `mapstructure:"backfill_ttl" validate:"gte=0"`
	Workers      int           `mapstructure:"workers" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// MemoryTierConfig configures the in-process tier.
type MemoryTierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Capacity uint64 `mapstructure:"capacity"`
}

// RedisTierConfig configures the shared Redis tier.
type RedisTierConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// URL is a redis:// or rediss:// URL.
	URL string `mapstructure:"url" validate:"required_with=Enabled,omitempty,url"`

	Read                 bool   `mapstructure:"read"`
	Write                bool   `mapstructure:"write"`
	KeyPrefix            string `mapstructure:"key_prefix"`
	CompressionThreshold int    `mapstructure:"compression_threshold"`
}

// Group returns the cache group configuration.
func (c CacheConfig) Group() cache.GroupConfig {
	return cache.GroupConfig{
		Backfill:     c.Backfill,
		BackfillTTL:  c.BackfillTTL,
		Workers:      c.Workers,
		WriteTimeout: c.WriteTimeout,
	}
}

// MemoryConfig returns the memory tier configuration.
func (c MemoryTierConfig) MemoryConfig() cache.MemoryConfig {
	return cache.MemoryConfig{Capacity: c.Capacity}
}

// RedisConfig returns the Redis tier configuration.
func (c RedisTierConfig) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{KeyPrefix: c.KeyPrefix, CompressionThreshold: c.CompressionThreshold}
}

// PoolConfig configures the websocket connection pools, one per URL.
type PoolConfig struct {
	MinSize     int           `mapstructure:"min_size" validate:"gte=0"`
	MaxSize     int           `mapstructure:"max_size" validate:"gte=1,gtefield=MinSize"`
	RecycleAge  time.Duration `mapstructure:"recycle_age" validate:"gte=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`

	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" validate:"gte=0"`
	ReadLimit         int64         `mapstructure:"read_limit" validate:"gte=0"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// Pool returns the per-URL pool configuration.
func (c PoolConfig) Pool() pool.Config {
	return pool.Config{
		MinSize:     c.MinSize,
		MaxSize:     c.MaxSize,
		RecycleAge:  c.RecycleAge,
		DialTimeout: c.DialTimeout,
	}
}

// Websocket returns the dialer configuration.
func (c PoolConfig) Websocket() pool.WebsocketConfig {
	return pool.WebsocketConfig{
		HandshakeTimeout:  c.HandshakeTimeout,
		ReadLimit:         c.ReadLimit,
		EnableCompression: c.EnableCompression,
	}
}

// ResilienceConfig configures per-upstream failure handling.
type ResilienceConfig struct {
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Bulkhead BulkheadConfig `mapstructure:"bulkhead"`
	Retry    RetryConfig    `mapstructure:"retry"`
}

// BreakerConfig configures the per-upstream circuit breakers.
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures" validate:"gte=0"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" validate:"gte=0"`
}

// Breaker returns the breaker template configuration.
func (c BreakerConfig) Breaker() resilience.BreakerConfig {
	return resilience.BreakerConfig{MaxFailures: c.MaxFailures, Cooldown: c.ResetTimeout}
}

// BulkheadConfig bounds in-flight calls per HTTP upstream.
type BulkheadConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"gte=0"`
	MaxWait       time.Duration `mapstructure:"max_wait" validate:"gte=0"`
}

// Bulkhead returns the bulkhead template configuration.
func (c BulkheadConfig) Bulkhead() resilience.BulkheadConfig {
	return resilience.BulkheadConfig{MaxConcurrent: c.MaxConcurrent, MaxWait: c.MaxWait}
}

// RetryConfig configures the backoff between upstream attempts. The number
// of attempts comes from the upstream document per URN.
type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	Jitter       bool          `mapstructure:"jitter"`
}

// Backoff returns the backoff configuration.
func (c RetryConfig) Backoff() resilience.BackoffConfig {
	return resilience.BackoffConfig{Initial: c.InitialDelay, Max: c.MaxDelay, Jitter: c.Jitter}
}

// RateLimitConfig configures per-client request limiting. Clients are
// keyed by authenticated principal or remote address.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate" validate:"gte=0"`
	Burst   int     `mapstructure:"burst" validate:"gte=0"`
	// IdleExpiry drops the bucket of a client idle for this long.
	IdleExpiry time.Duration `mapstructure:"idle_expiry" validate:"gte=0"`
}

// Store returns the in-memory per-client token bucket store.
func (c RateLimitConfig) Store() middleware.RateLimiterStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(c.Rate),
		Burst:     c.Burst,
		ExpiresIn: c.IdleExpiry,
	})
}

// HealthConfig configures the health checks.
type HealthConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	PoolSaturation float64       `mapstructure:"pool_saturation" validate:"gte=0,lte=1"`
	MaxBlockStale  time.Duration `mapstructure:"max_block_stale" validate:"gte=0"`
}

// Aggregator returns the aggregator configuration.
func (c HealthConfig) Aggregator() health.AggregatorConfig {
	return health.AggregatorConfig{Timeout: c.Timeout, CacheTTL: c.CacheTTL}
}

// PoolChecker returns the pool checker configuration.
func (c HealthConfig) PoolChecker() health.PoolCheckerConfig {
	return health.PoolCheckerConfig{SaturationThreshold: c.PoolSaturation}
}

// BlockChecker returns the block checker configuration.
func (c HealthConfig) BlockChecker() health.BlockCheckerConfig {
	return health.BlockCheckerConfig{MaxStale: c.MaxBlockStale}
}
