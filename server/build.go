package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/auth"
	"github.com/jonwraymond/rpcrelay/cache"
	"github.com/jonwraymond/rpcrelay/config"
	"github.com/jonwraymond/rpcrelay/health"
	"github.com/jonwraymond/rpcrelay/observe"
	"github.com/jonwraymond/rpcrelay/pool"
	"github.com/jonwraymond/rpcrelay/proxy"
	"github.com/jonwraymond/rpcrelay/resilience"
	"github.com/jonwraymond/rpcrelay/upstream"
)

// Build assembles a Server from cfg and the upstream document.
//
// obs may be nil, in which case calls are not traced or measured. The
// returned server owns the cache group and connection pools and closes them
// on Shutdown; obs stays owned by the caller.
func Build(ctx context.Context, cfg *config.Config, doc upstream.Config, version string, obs observe.Observer, logger zerolog.Logger) (*Server, error) {
	// Hosts are not looked up here; check-config does that.
	resolver, err := upstream.NewResolver(ctx, doc, upstream.WithURLValidation(nil))
	if err != nil {
		return nil, err
	}

	tiers, redisTier, err := buildTiers(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	group, err := cache.NewGroup(tiers, cfg.Cache.Group(), logger)
	if err != nil {
		closeTiers(tiers)
		return nil, err
	}

	pools := pool.NewRegistry(pool.NewWebsocketDialer(cfg.Pool.Websocket()), cfg.Pool.Pool(), logger)

	var mw *observe.Middleware
	if obs != nil {
		if mw, err = observe.MiddlewareFromObserver(obs); err != nil {
			_ = group.Close()
			return nil, err
		}
	}

	transport := proxy.SchemeTransport{
		HTTP:      proxy.NewHTTPTransport(&http.Client{}, 0),
		Websocket: proxy.NewPoolTransport(pools),
	}
	executor := buildExecutor(cfg.Resilience, logger)
	dispatcher := proxy.New(resolver, group, transport,
		proxy.WithExecutor(executor),
		proxy.WithMiddleware(mw),
		proxy.WithBatchLimit(cfg.Server.BatchLimit),
		proxy.WithLogger(logger),
	)

	agg := health.NewAggregator(cfg.Health.Aggregator())
	if redisTier != nil {
		agg.Register(health.NewPingChecker("redis", redisTier, cfg.Health.Timeout))
	}
	agg.Register(health.NewPoolChecker(pools.Stats, cfg.Health.PoolChecker()))
	agg.Register(health.NewBlockChecker(group.LastIrreversibleBlock, cfg.Health.BlockChecker()))
	if cfg.Resilience.Breaker.Enabled {
		agg.Register(health.NewBreakerChecker(executor.OpenBreakers))
	}

	info := func() map[string]any {
		return map[string]any{
			"name":      cfg.Telemetry.ServiceName,
			"version":   version,
			"upstreams": resolver.Namespaces(),
		}
	}

	opts := []Option{
		WithLogger(logger),
		WithHealth(agg, info),
		WithCloser(pools.Close),
		WithCloser(func(context.Context) error { return group.Close() }),
	}

	authn, err := auth.New(cfg.Auth)
	if err != nil {
		_ = group.Close()
		return nil, err
	}
	if authn != nil {
		opts = append(opts, WithAuth(authn, cfg.Auth.AllowAnonymous))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, WithRateLimit(cfg.RateLimit.Store()))
	}

	logger.Info().
		Strs("upstreams", resolver.Namespaces()).
		Int("tiers", len(tiers)).
		Bool("auth", authn != nil).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Msg("relay assembled")

	return New(cfg.Server, dispatcher, opts...), nil
}

// buildTiers opens the enabled cache tiers. The Redis tier is also
// returned on its own for health checking.
func buildTiers(cfg config.CacheConfig, logger zerolog.Logger) ([]cache.Tier, *cache.RedisCache, error) {
	var (
		tiers     []cache.Tier
		redisTier *cache.RedisCache
	)
	if cfg.Memory.Enabled {
		tiers = append(tiers, cache.Tier{
			Name:    "memory",
			Backend: cache.NewMemoryCache(cfg.Memory.MemoryConfig()),
			Read:    true,
			Write:   true,
			Speed:   cache.SpeedFast,
		})
	}
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			closeTiers(tiers)
			return nil, nil, fmt.Errorf("server: redis url: %w", err)
		}
		redisTier, err = cache.NewRedisCache(redis.NewClient(opts), cfg.Redis.RedisConfig(), logger)
		if err != nil {
			closeTiers(tiers)
			return nil, nil, err
		}
		tiers = append(tiers, cache.Tier{
			Name:    "redis",
			Backend: redisTier,
			Read:    cfg.Redis.Read,
			Write:   cfg.Redis.Write,
			Speed:   cache.SpeedSlow,
		})
	}
	return tiers, redisTier, nil
}

func closeTiers(tiers []cache.Tier) {
	for _, t := range tiers {
		_ = t.Backend.Close()
	}
}

func buildExecutor(cfg config.ResilienceConfig, logger zerolog.Logger) *resilience.Executor {
	opts := []resilience.ExecutorOption{
		resilience.WithBackoff(resilience.NewBackoff(cfg.Retry.Backoff())),
		resilience.WithLogger(logger),
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, resilience.WithBreakers(resilience.NewBreakers(cfg.Breaker.Breaker(), logger)))
	}
	if cfg.Bulkhead.Enabled {
		opts = append(opts, resilience.WithBulkheads(resilience.NewBulkheads(cfg.Bulkhead.Bulkhead())))
	}
	return resilience.NewExecutor(opts...)
}
