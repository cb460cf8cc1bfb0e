package cache_test

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/cache"
	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/upstream"
	"github.com/jonwraymond/rpcrelay/urn"
)

func ExampleGroup_GetJSONRPCResponse() {
	g, _ := cache.NewGroup([]cache.Tier{
		{Name: "memory", Backend: cache.NewMemoryCache(cache.MemoryConfig{}), Read: true, Write: true},
	}, cache.GroupConfig{}, zerolog.Nop())
	defer g.Close()
	ctx := context.Background()

	req := &jsonrpc.Request{ID: json.RawMessage(`1`), Version: jsonrpc.Version, Method: "get_config"}
	u, _ := urn.NewParser().Parse(req)
	call := cache.NewCall(req, u, upstream.Seconds(60))

	upstreamResp := &jsonrpc.Response{Version: jsonrpc.Version, ID: json.RawMessage(`77`), Result: json.RawMessage(`{"STEEMIT_CHAIN_ID":"0"}`)}
	_ = g.CacheJSONRPCResponse(ctx, call, upstreamResp)

	// A later client asking with its own id gets that id back.
	again := &jsonrpc.Request{ID: json.RawMessage(`"abc"`), Version: jsonrpc.Version, Method: "get_config"}
	resp, ok := g.GetJSONRPCResponse(ctx, cache.NewCall(again, u, upstream.Seconds(60)))
	fmt.Println(call.Key, ok, string(resp.ID))
	// Output:
	// steemd.database_api.get_config true "abc"
}

func ExampleGroup_Set() {
	g, _ := cache.NewGroup([]cache.Tier{
		{Name: "shared", Backend: cache.NewMemoryCache(cache.MemoryConfig{}), Read: true, Write: true, Speed: cache.SpeedSlow},
		{Name: "memory", Backend: cache.NewMemoryCache(cache.MemoryConfig{}), Read: true, Write: true, Speed: cache.SpeedFast},
	}, cache.GroupConfig{}, zerolog.Nop())
	defer g.Close()
	ctx := context.Background()

	_ = g.Set(ctx, "steemd.database_api.get_config", []byte(`{"jsonrpc":"2.0","result":{}}`), upstream.Seconds(60))
	_ = g.Set(ctx, "steemd.database_api.get_accounts", []byte(`{}`), upstream.NoCache)

	for _, t := range g.Tiers() {
		fmt.Println(t.Name, t.Speed)
	}
	_, ok := g.Get(ctx, "steemd.database_api.get_accounts")
	fmt.Println("get_accounts cached:", ok)
	// Output:
	// memory fast
	// shared slow
	// get_accounts cached: false
}
