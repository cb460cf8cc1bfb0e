// Package jsonrpc provides the JSON-RPC 2.0 wire types used by the proxy.
//
// It covers request parsing (single and batch), response shape validation,
// and the error taxonomy returned to clients. Every error that leaves the
// proxy is converted into an *Error carrying a stable numeric code and a
// data object with a unique error id.
package jsonrpc
