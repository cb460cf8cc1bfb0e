// Package proxy answers inbound JSON-RPC bodies.
//
// A Dispatcher parses a single request or a batch, canonicalizes every
// member into a URN, serves what it can from the cache group and forwards
// the rest to the upstream the resolver picks. Upstream calls run under the
// resolved timeout and retry count, behind a per-upstream circuit breaker,
// and go over a pooled websocket connection or an HTTP round trip depending
// on the URL scheme. Concurrent misses for the same cacheable URN share one
// upstream call.
//
// Every failure is answered with a JSON-RPC error envelope carrying an
// error id and the inbound request id; Handle never returns a Go error.
package proxy
