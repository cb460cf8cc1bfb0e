// Package pool keeps bounded sets of persistent backend connections.
//
// A Pool serves one backend URL. Connections move between free and
// in-use; a connection that misbehaves is terminated instead of being
// returned. Registry hands out one Pool per URL and closes them together.
//
// Exchange runs one JSON-RPC round trip on a pooled connection and
// terminates the connection when the response id does not match the
// request id, since every later response on it would be misattributed.
package pool
