// Package health reports whether the relay can serve requests.
//
// Checkers cover the pieces the relay depends on at runtime: the Redis
// cache tier (PingChecker), the upstream connection pools (PoolChecker),
// the progress of the last irreversible block (BlockChecker) and the
// upstream circuit breakers (BreakerChecker). An Aggregator runs them
// together and the echo handlers expose the report:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 2 * time.Second, CacheTTL: time.Second})
//	agg.Register(health.NewPingChecker("redis", redisTier, 0))
//	agg.Register(health.NewBlockChecker(group.LastIrreversibleBlock, health.BlockCheckerConfig{}))
//
//	e.GET("/healthz", health.Liveness)
//	e.GET("/health", health.Detailed(agg, nil))
//
// Degraded results keep HTTP 200; only unhealthy results answer 503.
package health
