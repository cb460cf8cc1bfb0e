package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/pool"
)

// Transport sends one request to a backend URL and returns its response.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - The returned response carries the id of req; a mismatch is an error
//   wrapping jsonrpc.ErrInvalidResponse.
type Transport interface {
	RoundTrip(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	return f(ctx, url, req)
}

// IsWebsocket reports whether url is served over a pooled websocket.
func IsWebsocket(url string) bool {
	return strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://")
}

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// DefaultMaxResponseBytes bounds HTTP upstream response bodies.
const DefaultMaxResponseBytes = 32 << 20

// HTTPTransport posts requests to http and https backends.
type HTTPTransport struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPTransport creates an HTTPTransport. A nil client uses
// http.DefaultClient; maxBytes <= 0 uses DefaultMaxResponseBytes.
func NewHTTPTransport(client *http.Client, maxBytes int64) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	return &HTTPTransport{client: client, maxBytes: maxBytes}
}

// RoundTrip implements Transport.
//
// Backends answering with a non-2xx status are accepted as long as the body
// is a well-formed JSON-RPC response.
func (t *HTTPTransport) RoundTrip(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("proxy: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("proxy: build request for %s: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy: post %s: %w", url, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("proxy: read response from %s: %w", url, err)
	}

	resp, err := jsonrpc.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: %s answered %d: %w", url, httpResp.StatusCode, err)
	}
	if !sameID(req.IDOrNull(), orNull(resp.ID)) {
		return nil, fmt.Errorf("proxy: %s: response id %s does not match request id %s: %w",
			url, orNull(resp.ID), req.IDOrNull(), jsonrpc.ErrInvalidResponse)
	}
	return resp, nil
}

// PoolTransport exchanges requests over pooled websocket connections.
type PoolTransport struct {
	pools *pool.Registry
}

// NewPoolTransport creates a PoolTransport over pools.
func NewPoolTransport(pools *pool.Registry) *PoolTransport {
	return &PoolTransport{pools: pools}
}

// RoundTrip implements Transport.
func (t *PoolTransport) RoundTrip(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	return t.pools.Get(url).Exchange(ctx, req)
}

// SchemeTransport picks a transport by URL scheme.
type SchemeTransport struct {
	HTTP      Transport
	Websocket Transport
}

// RoundTrip implements Transport.
func (t SchemeTransport) RoundTrip(ctx context.Context, url string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	switch {
	case IsWebsocket(url):
		if t.Websocket == nil {
			return nil, ErrNoWebsocketTransport
		}
		return t.Websocket.RoundTrip(ctx, url, req)
	case isHTTP(url):
		return t.HTTP.RoundTrip(ctx, url, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, url)
	}
}

func sameID(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func orNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
