// Package observe provides the relay's logging and telemetry.
//
// NewLogger builds the zerolog process logger (optionally rotating through
// lumberjack). NewObserver sets up OpenTelemetry tracing and metrics with
// the exporters in the exporters subpackage. Middleware wraps the handling
// of each JSON-RPC call with a span named after its namespace, api and
// method, call counters and a log line carrying the call's URN.
package observe
