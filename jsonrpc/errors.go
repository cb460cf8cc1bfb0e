package jsonrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorCode is a JSON-RPC error code.
type ErrorCode int

const (
	// ErrorCodeParse is returned for malformed JSON.
	ErrorCodeParse ErrorCode = -32700
	// ErrorCodeInvalidRequest is returned when the body is not a valid request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound is returned for unknown methods.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams is returned for invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternal is returned for unexpected failures.
	ErrorCodeInternal ErrorCode = -32603
	// ErrorCodeServer is the generic implementation-defined server error.
	ErrorCodeServer ErrorCode = -32000

	// ErrorCodeInvalidNamespace is returned when a method cannot be canonicalized.
	ErrorCodeInvalidNamespace ErrorCode = 1100
	// ErrorCodeInvalidNamespaceAPI is returned for an unknown numeric api index.
	ErrorCodeInvalidNamespaceAPI ErrorCode = 1101
	// ErrorCodeUpstreamResponse is returned for malformed or mismatched backend responses.
	ErrorCodeUpstreamResponse ErrorCode = 1200
	// ErrorCodeRequestTimeout is returned when the inbound request deadline passes.
	ErrorCodeRequestTimeout ErrorCode = 1300
	// ErrorCodeResponseTimeout is returned when a backend does not answer in time.
	ErrorCodeResponseTimeout ErrorCode = 1301
	// ErrorCodeBatchSize is returned when a batch exceeds the configured limit.
	ErrorCodeBatchSize ErrorCode = 1400
)

var defaultMessages = map[ErrorCode]string{
	ErrorCodeParse:               "Parse error",
	ErrorCodeInvalidRequest:      "Invalid Request",
	ErrorCodeMethodNotFound:      "Method not found",
	ErrorCodeInvalidParams:       "Invalid params",
	ErrorCodeInternal:            "Internal error",
	ErrorCodeServer:              "Server error",
	ErrorCodeInvalidNamespace:    "Unable to parse request method",
	ErrorCodeInvalidNamespaceAPI: "Unable to parse request namespace api",
	ErrorCodeUpstreamResponse:    "Upstream response error",
	ErrorCodeRequestTimeout:      "Request timeout",
	ErrorCodeResponseTimeout:     "Upstream response timeout",
	ErrorCodeBatchSize:           "Too many requests in batch",
}

// Message returns the stable message for code.
func (c ErrorCode) Message() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return defaultMessages[ErrorCodeInternal]
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: code: %d, message: %s, data: %+v", e.Code, e.Message, e.Data)
}

// WithData returns a copy of e with key set in its data object.
func (e *Error) WithData(key string, value any) *Error {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}

// ErrorID returns the error id stamped on e, if any.
func (e *Error) ErrorID() string {
	id, _ := e.Data["error_id"].(string)
	return id
}

// NewError returns an error for code with its stable message and a fresh error id.
func NewError(code ErrorCode) *Error {
	return &Error{
		Code:    code,
		Message: code.Message(),
		Data:    map[string]any{"error_id": uuid.NewString()},
	}
}

// ErrParse returns a parse error.
func ErrParse() *Error { return NewError(ErrorCodeParse) }

// ErrInvalidRequest returns an invalid request error.
func ErrInvalidRequest() *Error { return NewError(ErrorCodeInvalidRequest) }

// ErrInternal returns an internal error.
func ErrInternal() *Error { return NewError(ErrorCodeInternal) }

// ErrBatchSize returns a batch size error carrying the configured limit.
func ErrBatchSize(limit int) *Error {
	return NewError(ErrorCodeBatchSize).WithData("batch_size_limit", limit)
}

// Coder is implemented by errors that map onto a specific JSON-RPC code.
type Coder interface {
	JSONRPCCode() ErrorCode
}

// FromError converts err into a client-facing *Error.
//
// *Error values pass through (gaining an error id if they lack one), errors
// implementing Coder keep their code, context deadlines map to a request
// timeout, and everything else becomes an internal error. The original error
// text is never exposed.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorID() == "" {
			return rpcErr.WithData("error_id", uuid.NewString())
		}
		return rpcErr
	}

	var coder Coder
	if errors.As(err, &coder) {
		return NewError(coder.JSONRPCCode())
	}

	if errors.Is(err, ErrInvalidResponse) {
		return NewError(ErrorCodeUpstreamResponse)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorCodeRequestTimeout)
	}

	return ErrInternal()
}
