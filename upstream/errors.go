package upstream

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// Sentinel errors for configuration and resolution.
var (
	// ErrInvalidConfig indicates a malformed upstream document.
	ErrInvalidConfig = errors.New("upstream: invalid config")

	// ErrInvalidTTL indicates a TTL that is neither a known name nor a valid
	// legacy integer.
	ErrInvalidTTL = errors.New("upstream: invalid ttl")

	// ErrInvalidUpstreamURL indicates a configured URL that cannot be parsed
	// or uses an unsupported scheme.
	ErrInvalidUpstreamURL = errors.New("upstream: invalid upstream url")

	// ErrInvalidUpstreamHost indicates a configured URL whose host does not
	// resolve.
	ErrInvalidUpstreamHost = errors.New("upstream: invalid upstream host")

	// ErrMissingEnv indicates a ${VAR} reference with no value in the
	// environment.
	ErrMissingEnv = errors.New("upstream: missing required environment variables")
)

// NoURLError is returned when no configured prefix covers a URN.
type NoURLError struct {
	Key string
}

// Error implements the error interface.
func (e *NoURLError) Error() string {
	return fmt.Sprintf("upstream: no url for %q", e.Key)
}

// JSONRPCCode implements jsonrpc.Coder.
func (e *NoURLError) JSONRPCCode() jsonrpc.ErrorCode {
	return jsonrpc.ErrorCodeMethodNotFound
}
