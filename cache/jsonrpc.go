package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/upstream"
	"github.com/jonwraymond/rpcrelay/urn"
)

// Methods whose responses are checked against the requested block number.
var blockMethods = map[string]struct{}{
	"get_block":        {},
	"get_block_header": {},
}

const dynamicGlobalPropertiesMethod = "get_dynamic_global_properties"

// Call is a canonicalized request together with its cache policy.
type Call struct {
	Request *jsonrpc.Request
	URN     urn.URN
	// Key is the cache key, URN.String().
	Key string
	TTL upstream.TTL
}

// NewCall builds a Call for req.
func NewCall(req *jsonrpc.Request, u urn.URN, ttl upstream.TTL) *Call {
	return &Call{Request: req, URN: u, Key: u.String(), TTL: ttl}
}

// GetJSONRPCResponse returns the cached response for call, stamped with the
// caller's id.
func (g *Group) GetJSONRPCResponse(ctx context.Context, call *Call) (*jsonrpc.Response, bool) {
	raw, ok := g.Get(ctx, call.Key)
	if !ok {
		return nil, false
	}
	resp, err := jsonrpc.DecodeResponse(raw)
	if err != nil {
		g.logger.Debug().Err(err).Str("urn", call.Key).Msg("discarding invalid cached response")
		return nil, false
	}
	return resp.WithID(call.Request.IDOrNull()), true
}

// GetBatchJSONRPCResponse returns cached responses positionally for a batch.
// Misses and invalid cached values are nil.
func (g *Group) GetBatchJSONRPCResponse(ctx context.Context, calls []*Call) []*jsonrpc.Response {
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = c.Key
	}

	out := make([]*jsonrpc.Response, len(calls))
	for i, raw := range g.MultiGet(ctx, keys) {
		if raw == nil {
			continue
		}
		resp, err := jsonrpc.DecodeResponse(raw)
		if err != nil {
			continue
		}
		out[i] = resp.WithID(calls[i].Request.IDOrNull())
	}
	return out
}

// IsCompleteResponse reports whether cached answers every call with a
// well-formed response.
func IsCompleteResponse(calls []*Call, cached []*jsonrpc.Response) bool {
	if len(calls) == 0 || len(calls) != len(cached) {
		return false
	}
	for _, resp := range cached {
		if jsonrpc.ValidateResponse(resp) != nil {
			return false
		}
	}
	return true
}

// CacheJSONRPCResponse stores resp under the call's URN.
//
// It returns ErrUncacheable for error responses and for block responses
// that do not describe the requested block. A TTL resolving to NoCache is
// not an error; nothing is written.
func (g *Group) CacheJSONRPCResponse(ctx context.Context, call *Call, resp *jsonrpc.Response) error {
	item, err := g.prepare(call, resp)
	if err != nil {
		return err
	}
	return g.Set(ctx, item.Key, item.Value, item.TTL)
}

// CacheBatchJSONRPCResponse stores every cacheable member of a batch.
// Uncacheable members are skipped.
func (g *Group) CacheBatchJSONRPCResponse(ctx context.Context, calls []*Call, resps []*jsonrpc.Response) error {
	items := make([]Item, 0, len(calls))
	for i, call := range calls {
		if i >= len(resps) {
			break
		}
		item, err := g.prepare(call, resps[i])
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	return g.MultiSet(ctx, items)
}

// CacheJSONRPCResponseAsync caches resp on the background writer.
func (g *Group) CacheJSONRPCResponseAsync(call *Call, resp *jsonrpc.Response) {
	g.submit(func(ctx context.Context) {
		if err := g.CacheJSONRPCResponse(ctx, call, resp); err != nil && !errors.Is(err, ErrUncacheable) {
			g.logger.Warn().Err(err).Str("urn", call.Key).Msg("failed to cache response")
		}
	})
}

// CacheBatchJSONRPCResponseAsync caches a batch on the background writer.
func (g *Group) CacheBatchJSONRPCResponseAsync(calls []*Call, resps []*jsonrpc.Response) {
	g.submit(func(ctx context.Context) {
		if err := g.CacheBatchJSONRPCResponse(ctx, calls, resps); err != nil {
			g.logger.Warn().Err(err).Int("calls", len(calls)).Msg("failed to cache batch response")
		}
	})
}

// ObserveResponse updates the last irreversible block from a
// get_dynamic_global_properties response.
func (g *Group) ObserveResponse(call *Call, resp *jsonrpc.Response) {
	if call.URN.Method != dynamicGlobalPropertiesMethod || resp == nil || resp.IsError() {
		return
	}
	var props struct {
		LastIrreversibleBlockNum *json.Number `json:"last_irreversible_block_num"`
	}
	if err := json.Unmarshal(resp.Result, &props); err != nil || props.LastIrreversibleBlockNum == nil {
		return
	}
	n, err := strconv.ParseUint(props.LastIrreversibleBlockNum.String(), 10, 64)
	if err != nil {
		return
	}
	if g.SetLastIrreversibleBlock(n) {
		g.logger.Debug().Uint64("last_irreversible_block_num", n).Msg("updated last irreversible block")
	}
}

// ResolveTTL turns NoExpireIfIrreversible into NoExpire when the response's
// block is irreversible and NoCache otherwise. Other TTLs are returned as-is.
func (g *Group) ResolveTTL(ttl upstream.TTL, resp *jsonrpc.Response) upstream.TTL {
	if ttl.Kind() != upstream.TTLNoExpireIfIrreversible {
		return ttl
	}
	block, ok := responseBlockNum(resp.Result)
	if !ok {
		return upstream.NoCache
	}
	if lib := g.LastIrreversibleBlock(); lib > 0 && lib >= block {
		return upstream.NoExpire
	}
	return upstream.NoCache
}

func (g *Group) prepare(call *Call, resp *jsonrpc.Response) (Item, error) {
	if err := jsonrpc.ValidateResponse(resp); err != nil {
		cacheSkipped.WithLabelValues("invalid").Inc()
		return Item{}, ErrUncacheable
	}
	if resp.IsError() {
		cacheSkipped.WithLabelValues("error").Inc()
		return Item{}, ErrUncacheable
	}

	g.ObserveResponse(call, resp)

	if _, ok := blockMethods[call.URN.Method]; ok {
		requested, hasRequested := requestedBlockNum(call.URN.Params)
		got, hasGot := responseBlockNum(resp.Result)
		if hasRequested && (!hasGot || got != requested) {
			cacheSkipped.WithLabelValues("block_mismatch").Inc()
			return Item{}, ErrUncacheable
		}
	}

	value, err := json.Marshal(resp.WithID(nil))
	if err != nil {
		return Item{}, err
	}
	return Item{Key: call.Key, Value: value, TTL: g.ResolveTTL(call.TTL, resp)}, nil
}

// requestedBlockNum reads the block number from [n, ...] or {"block_num": n}.
func requestedBlockNum(params any) (uint64, bool) {
	var v any
	switch p := params.(type) {
	case []any:
		if len(p) == 0 {
			return 0, false
		}
		v = p[0]
	case map[string]any:
		v = p["block_num"]
	default:
		return 0, false
	}

	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

type blockFields struct {
	BlockID  string       `json:"block_id"`
	Previous string       `json:"previous"`
	Block    *blockFields `json:"block"`
	Header   *blockFields `json:"header"`
}

// responseBlockNum finds the block number described by a result, looking at
// result, result.block and result.header in that order. The number is the
// big-endian value of the first 8 hex digits of block_id, or of previous
// plus one.
func responseBlockNum(result json.RawMessage) (uint64, bool) {
	var fields blockFields
	if err := json.Unmarshal(result, &fields); err != nil {
		return 0, false
	}
	for _, f := range []*blockFields{&fields, fields.Block, fields.Header} {
		if f == nil {
			continue
		}
		if n, ok := blockNumFromID(f.BlockID); ok {
			return n, true
		}
		if n, ok := blockNumFromID(f.Previous); ok {
			return n + 1, true
		}
	}
	return 0, false
}

func blockNumFromID(id string) (uint64, bool) {
	if len(id) < 8 {
		return 0, false
	}
	b, err := hex.DecodeString(id[:8])
	if err != nil {
		return 0, false
	}
	return uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3]), true
}
