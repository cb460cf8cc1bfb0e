// Package resilience guards upstream calls.
//
// Every upstream call runs through an Executor with a Policy resolved for
// its URN: the URN's retry count sets the number of attempts and its
// timeout bounds each attempt. The upstream URL selects a Breaker and, for
// HTTP upstreams, a Bulkhead from a Registry.
//
// Errors that reach clients carry JSON-RPC codes: ErrTimeout maps to the
// upstream response timeout, the local rejections to a server error.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBreakers(resilience.NewBreakers(resilience.BreakerConfig{}, logger)),
//	)
//
//	err := exec.Execute(ctx, resilience.Policy{
//	    Upstream: "wss://api.example.com",
//	    Attempts: 3,
//	    Timeout:  3 * time.Second,
//	}, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
package resilience
