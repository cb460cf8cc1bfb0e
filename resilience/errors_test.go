package resilience

import (
	"fmt"
	"testing"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code jsonrpc.ErrorCode
	}{
		{"ErrCircuitOpen", ErrCircuitOpen, jsonrpc.ErrorCodeServer},
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded, jsonrpc.ErrorCodeInternal},
		{"ErrBulkheadFull", ErrBulkheadFull, jsonrpc.ErrorCodeServer},
		{"ErrTimeout", ErrTimeout, jsonrpc.ErrorCodeResponseTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Errorf("%s has empty message", tt.name)
			}

			wrapped := fmt.Errorf("call upstream: %w", tt.err)
			if got := jsonrpc.FromError(wrapped).Code; got != tt.code {
				t.Errorf("FromError(%s).Code = %d, want %d", tt.name, got, tt.code)
			}
		})
	}
}

func TestMaxRetriesKeepsLastErrorCode(t *testing.T) {
	err := fmt.Errorf("%w after 3 attempts: %w", ErrMaxRetriesExceeded, ErrTimeout)
	if got := jsonrpc.FromError(err).Code; got != jsonrpc.ErrorCodeResponseTimeout {
		t.Errorf("FromError().Code = %d, want %d", got, jsonrpc.ErrorCodeResponseTimeout)
	}
}
