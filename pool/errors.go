package pool

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

var (
	// ErrPoolClosed is returned when acquiring from a closing or closed pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrPoolOpen is returned by WaitClosed before Close was called.
	ErrPoolOpen = errors.New("pool: still open")
)

// DesyncError reports a backend response whose id does not match the
// request sent on that connection.
type DesyncError struct {
	URL  string
	Sent string
	Got  string
}

// Error implements error.
func (e *DesyncError) Error() string {
	return fmt.Sprintf("pool: %s: response id %s does not match request id %s", e.URL, e.Got, e.Sent)
}

// JSONRPCCode implements jsonrpc.Coder.
func (e *DesyncError) JSONRPCCode() jsonrpc.ErrorCode {
	return jsonrpc.ErrorCodeUpstreamResponse
}
