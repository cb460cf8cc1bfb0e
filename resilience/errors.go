package resilience

import (
	"errors"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// codedError is a sentinel that also carries the JSON-RPC code clients see.
type codedError struct {
	msg  string
	code jsonrpc.ErrorCode
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) JSONRPCCode() jsonrpc.ErrorCode { return e.code }

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the upstream's breaker is open.
	ErrCircuitOpen error = &codedError{"resilience: circuit breaker is open", jsonrpc.ErrorCodeServer}

	// ErrMaxRetriesExceeded wraps the last error once every attempt failed.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBulkheadFull is returned when an upstream has no free request slot.
	ErrBulkheadFull error = &codedError{"resilience: bulkhead at capacity", jsonrpc.ErrorCodeServer}

	// ErrTimeout is returned when an upstream attempt exceeds its timeout.
	ErrTimeout error = &codedError{"resilience: upstream timed out", jsonrpc.ErrorCodeResponseTimeout}
)
