package proxy

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/rpcrelay/cache"
	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/observe"
	"github.com/jonwraymond/rpcrelay/resilience"
	"github.com/jonwraymond/rpcrelay/upstream"
	"github.com/jonwraymond/rpcrelay/urn"
)

// DefaultBatchLimit is the largest batch accepted when no limit is set.
const DefaultBatchLimit = 50

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithExecutor sets the resilience executor wrapping upstream calls.
func WithExecutor(e *resilience.Executor) Option {
	return func(d *Dispatcher) {
		d.executor = e
	}
}

// WithMiddleware instruments every call.
func WithMiddleware(m *observe.Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = m
	}
}

// WithBatchLimit sets the largest accepted batch.
func WithBatchLimit(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchLimit = n
		}
	}
}

// WithParser replaces the URN parser built from the resolver's namespaces.
func WithParser(p *urn.Parser) Option {
	return func(d *Dispatcher) {
		d.parser = p
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "proxy").Logger()
	}
}

// Dispatcher routes JSON-RPC calls to the cache or an upstream.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Handle always produces a reply; failures become error envelopes.
// - Batch replies keep the order of the inbound batch.
type Dispatcher struct {
	resolver   *upstream.Resolver
	group      *cache.Group
	transport  Transport
	parser     *urn.Parser
	executor   *resilience.Executor
	middleware *observe.Middleware
	validator  *jsonrpc.Validator
	logger     zerolog.Logger
	batchLimit int

	flights singleflight.Group
	nextID  atomic.Uint64
}

// New creates a Dispatcher.
func New(resolver *upstream.Resolver, group *cache.Group, transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:   resolver,
		group:      group,
		transport:  transport,
		validator:  jsonrpc.NewValidator(),
		logger:     zerolog.Nop(),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.parser == nil {
		d.parser = urn.NewParser(resolver.Namespaces()...)
	}
	if d.executor == nil {
		d.executor = resilience.NewExecutor(resilience.WithLogger(d.logger))
	}
	if d.middleware == nil {
		d.middleware = observe.NewMiddleware(nil, nil, d.logger)
	}
	return d
}

// CallInfo describes how one member of a reply was answered.
type CallInfo struct {
	// URN is zero when the member could not be canonicalized.
	URN      urn.URN
	Key      string
	Upstream string
	CacheHit bool
}

// Reply is the answer to one inbound body.
type Reply struct {
	Batch     bool
	Responses []*jsonrpc.Response
	// Calls is positional with Responses. It is empty when the body was
	// rejected as a whole.
	Calls []CallInfo
}

// Body encodes the reply: an array for batches, an object otherwise.
func (r *Reply) Body() ([]byte, error) {
	if r.Batch {
		return json.Marshal(r.Responses)
	}
	return json.Marshal(r.Responses[0])
}

// Single returns the call info of a non-batch reply.
func (r *Reply) Single() (CallInfo, bool) {
	if r.Batch || len(r.Calls) != 1 {
		return CallInfo{}, false
	}
	return r.Calls[0], true
}

// prepared is a canonicalized member ready for lookup.
type prepared struct {
	id     json.RawMessage
	call   *cache.Call
	policy upstream.Policy
	err    error
}

// Handle answers body. requestID is stamped on every error envelope.
func (d *Dispatcher) Handle(ctx context.Context, body []byte, requestID string) *Reply {
	reqs, batch, err := jsonrpc.Parse(body, d.validator)
	if err != nil {
		return d.reject(nil, err, requestID)
	}
	if batch && len(reqs) > d.batchLimit {
		return d.reject(nil, jsonrpc.ErrBatchSize(d.batchLimit), requestID)
	}

	members := make([]prepared, len(reqs))
	for i, req := range reqs {
		members[i] = d.prepare(req)
	}

	reply := &Reply{
		Batch:     batch,
		Responses: make([]*jsonrpc.Response, len(members)),
		Calls:     make([]CallInfo, len(members)),
	}

	if !batch {
		reply.Responses[0], reply.Calls[0] = d.dispatch(ctx, members[0], nil, requestID, false)
		return reply
	}

	hits := d.batchLookup(ctx, members)

	var g errgroup.Group
	for i := range members {
		g.Go(func() error {
			reply.Responses[i], reply.Calls[i] = d.dispatch(ctx, members[i], hits[i], requestID, true)
			return nil
		})
	}
	_ = g.Wait()
	return reply
}

func (d *Dispatcher) reject(id json.RawMessage, err error, requestID string) *Reply {
	return &Reply{Responses: []*jsonrpc.Response{errorResponse(id, err, requestID)}}
}

// Canonicalize returns the URN req is routed and cached under together with
// the request to forward. Requests in a namespace configured for appbase
// translation are rewritten once into a condenser_api call and
// canonicalized again.
func Canonicalize(parser *urn.Parser, resolver *upstream.Resolver, req *jsonrpc.Request) (urn.URN, *jsonrpc.Request, error) {
	u, err := parser.Parse(req)
	if err != nil {
		return urn.URN{}, nil, err
	}
	if !resolver.TranslateToAppbase(u.Namespace) {
		return u, req, nil
	}

	translated, err := urn.ToAppbase(req.ID, u)
	if err != nil {
		return urn.URN{}, nil, err
	}
	if u, err = parser.Parse(translated); err != nil {
		return urn.URN{}, nil, err
	}
	return u, translated, nil
}

// prepare canonicalizes req and resolves the policy of the result.
func (d *Dispatcher) prepare(req *jsonrpc.Request) prepared {
	id := req.IDOrNull()
	u, req, err := Canonicalize(d.parser, d.resolver, req)
	if err != nil {
		return prepared{id: id, err: err}
	}

	key := u.String()
	call := cache.NewCall(req, u, d.resolver.TTL(key))
	policy, err := d.resolver.Resolve(key)
	return prepared{id: id, call: call, policy: policy, err: err}
}

// batchLookup fetches every canonicalized member of a batch from the cache
// in one pass. The result is positional with members.
func (d *Dispatcher) batchLookup(ctx context.Context, members []prepared) []*jsonrpc.Response {
	hits := make([]*jsonrpc.Response, len(members))

	calls := make([]*cache.Call, 0, len(members))
	index := make([]int, 0, len(members))
	for i, m := range members {
		if m.err == nil {
			calls = append(calls, m.call)
			index = append(index, i)
		}
	}
	if len(calls) == 0 {
		return hits
	}

	cached := d.group.GetBatchJSONRPCResponse(ctx, calls)
	for j, resp := range cached {
		hits[index[j]] = resp
	}
	if cache.IsCompleteResponse(calls, cached) {
		d.logger.Debug().Int("calls", len(calls)).Msg("batch answered from cache")
	}
	return hits
}

// dispatch answers one member. A non-nil hit was already read from the
// cache by a batch lookup; a nil hit on a batch member is a known miss.
func (d *Dispatcher) dispatch(ctx context.Context, m prepared, hit *jsonrpc.Response, requestID string, batch bool) (*jsonrpc.Response, CallInfo) {
	id := m.id
	if m.call == nil {
		return errorResponse(id, m.err, requestID), CallInfo{}
	}

	info := CallInfo{URN: m.call.URN, Key: m.call.Key, Upstream: m.policy.URL}
	if m.err != nil {
		return errorResponse(id, m.err, requestID), info
	}

	meta := observe.CallMeta{
		URN:       m.call.Key,
		Namespace: m.call.URN.Namespace,
		API:       m.call.URN.API,
		Method:    m.call.URN.Method,
		Upstream:  m.policy.URL,
		RequestID: requestID,
		Batch:     batch,
	}

	result, err := d.middleware.Wrap(func(ctx context.Context, _ observe.CallMeta) (observe.CallResult, error) {
		if hit != nil {
			return observe.CallResult{Response: hit, CacheHit: true}, nil
		}
		if !batch {
			if resp, ok := d.group.GetJSONRPCResponse(ctx, m.call); ok {
				return observe.CallResult{Response: resp, CacheHit: true}, nil
			}
		}
		resp, err := d.fetch(ctx, m.call, m.policy)
		if err != nil {
			return observe.CallResult{}, err
		}
		return observe.CallResult{Response: resp.WithID(id)}, nil
	})(ctx, meta)

	if err != nil {
		return errorResponse(id, err, requestID), info
	}
	info.CacheHit = result.CacheHit
	return result.Response, info
}

// fetch forwards call upstream. Concurrent fetches of the same cacheable
// URN share one upstream call; the shared response must not be mutated.
func (d *Dispatcher) fetch(ctx context.Context, call *cache.Call, policy upstream.Policy) (*jsonrpc.Response, error) {
	if !call.TTL.Cacheable() {
		return d.forward(ctx, call, policy)
	}
	// The shared call outlives any single caller; the policy's per-attempt
	// timeout and retry count bound it.
	ch := d.flights.DoChan(call.Key, func() (any, error) {
		return d.forward(context.WithoutCancel(ctx), call, policy)
	})
	select {
	case res := <-ch:
		if res.Shared {
			coalescedCalls.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jsonrpc.Response), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// forward sends call to its upstream under a fresh upstream id, then hands
// the response to the background cache writer.
func (d *Dispatcher) forward(ctx context.Context, call *cache.Call, policy upstream.Policy) (*jsonrpc.Response, error) {
	req := call.Request.WithID(d.upstreamID())

	var resp *jsonrpc.Response
	err := d.executor.Execute(ctx, resilience.Policy{
		Upstream: policy.URL,
		Attempts: policy.Retries + 1,
		Timeout:  policy.Timeout,
		Bulkhead: !IsWebsocket(policy.URL),
	}, func(ctx context.Context) error {
		r, err := d.transport.RoundTrip(ctx, policy.URL, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		upstreamFailures.WithLabelValues(policy.URL).Inc()
		return nil, err
	}

	d.group.ObserveResponse(call, resp)
	if !resp.IsError() && call.TTL.Cacheable() {
		d.group.CacheJSONRPCResponseAsync(call, resp)
	}
	return resp, nil
}

func (d *Dispatcher) upstreamID() json.RawMessage {
	return json.RawMessage(strconv.FormatUint(d.nextID.Add(1), 10))
}

func errorResponse(id json.RawMessage, err error, requestID string) *jsonrpc.Response {
	rpcErr := jsonrpc.FromError(err)
	if requestID != "" {
		rpcErr = rpcErr.WithData("request_id", requestID)
	}
	return jsonrpc.NewErrorResponse(id, rpcErr)
}
