package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/go-playground/validator.v9"
)

// EnvPrefix prefixes environment overrides: server.addr is RPCRELAY_SERVER_ADDR.
const EnvPrefix = "RPCRELAY"

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid")

// defaults holds every key so that environment overrides apply to keys
// absent from the file.
var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.batch_limit":      50,
	"server.request_timeout":  30 * time.Second,
	"server.body_limit":       "4M",
	"server.read_timeout":     30 * time.Second,
	"server.write_timeout":    60 * time.Second,
	"server.shutdown_timeout": 15 * time.Second,

	"upstreams": "",

	"logging.level":             "info",
	"logging.format":            "json",
	"logging.caller":            false,
	"logging.async":             false,
	"logging.file.path":         "",
	"logging.file.max_size_mb":  100,
	"logging.file.max_backups":  5,
	"logging.file.max_age_days": 7,
	"logging.file.compress":     true,

	"telemetry.service_name":       "rpcrelay",
	"telemetry.tracing.enabled":    false,
	"telemetry.tracing.exporter":   "otlp",
	"telemetry.tracing.endpoint":   "",
	"telemetry.tracing.insecure":   false,
	"telemetry.tracing.sample_pct": 0.1,
	"telemetry.metrics.enabled":    true,
	"telemetry.metrics.exporter":   "prometheus",
	"telemetry.metrics.endpoint":   "",
	"telemetry.metrics.insecure":   false,

	"cache.memory.enabled":              true,
	"cache.memory.capacity":             0,
	"cache.redis.enabled":               false,
	"cache.redis.url":                   "",
	"cache.redis.read":                  true,
	"cache.redis.write":                 true,
	"cache.redis.key_prefix":            "rpcrelay:",
	"cache.redis.compression_threshold": 512,
	"cache.backfill":                    false,
	"cache.backfill_ttl":                time.Minute,
	"cache.workers":                     8,
	"cache.write_timeout":               5 * time.Second,

	"pool.min_size":           1,
	"pool.max_size":           8,
	"pool.recycle_age":        0,
	"pool.dial_timeout":       10 * time.Second,
	"pool.handshake_timeout":  10 * time.Second,
	"pool.read_limit":         0,
	"pool.enable_compression": false,

	"resilience.breaker.enabled":         true,
	"resilience.breaker.max_failures":    5,
	"resilience.breaker.reset_timeout":   30 * time.Second,
	"resilience.bulkhead.enabled":        true,
	"resilience.bulkhead.max_concurrent": 64,
	"resilience.bulkhead.max_wait":       0,
	"resilience.retry.initial_delay":     50 * time.Millisecond,
	"resilience.retry.max_delay":         time.Second,
	"resilience.retry.jitter":            true,

	"rate_limit.enabled":     false,
	"rate_limit.rate":        100.0,
	"rate_limit.burst":       200,
	"rate_limit.idle_expiry": 3 * time.Minute,

	"health.cache_ttl":       time.Second,
	"health.timeout":         2 * time.Second,
	"health.pool_saturation": 0.9,
	"health.max_block_stale": time.Minute,

	"auth.enabled":             false,
	"auth.allow_anonymous":     false,
	"auth.api_key.header":      "X-API-Key",
	"auth.api_key.keys":        []map[string]any{},
	"auth.jwt.secret":          "",
	"auth.jwt.issuer":          "",
	"auth.jwt.audience":        "",
	"auth.jwt.header":          "Authorization",
	"auth.jwt.prefix":          "Bearer ",
	"auth.jwt.principal_claim": "sub",
}

// NewViper returns a viper instance with defaults and environment
// overrides installed.
func NewViper() *viper.Viper {
	vc := viper.New()
	for key, value := range defaults {
		vc.SetDefault(key, value)
	}
	vc.SetEnvPrefix(EnvPrefix)
	vc.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vc.AutomaticEnv()
	return vc
}

// Load reads path (any format viper understands; empty for none), applies
// environment overrides and flags, then decodes and validates.
//
// Flags are bound by name, so a flag named "server.addr" overrides that key.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	vc := NewViper()
	if path != "" {
		vc.SetConfigFile(path)
		if err := vc.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := vc.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}
	return Decode(vc)
}

// Decode unmarshals and validates the settings held by vc.
func Decode(vc *viper.Viper) (*Config, error) {
	cfg := new(Config)
	err := vc.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg's struct constraints.
func Validate(cfg *Config) error {
	v := validator.New()
	_ = v.RegisterValidation("listen_addr", isListenAddr)
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Auth.Enabled && len(cfg.Auth.APIKey.Keys) == 0 && cfg.Auth.JWT.Secret == "" {
		return fmt.Errorf("%w: auth enabled without api keys or a jwt secret", ErrInvalid)
	}
	return nil
}

func isListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	return err == nil && port != ""
}
