package urn

import (
	"fmt"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// InvalidNamespaceError is returned when a method cannot be mapped onto a
// known namespace, or a call request has an unusable shape.
type InvalidNamespaceError struct {
	Namespace string
}

// Error implements the error interface.
func (e *InvalidNamespaceError) Error() string {
	return fmt.Sprintf("urn: invalid namespace %q", e.Namespace)
}

// JSONRPCCode implements jsonrpc.Coder.
func (e *InvalidNamespaceError) JSONRPCCode() jsonrpc.ErrorCode {
	return jsonrpc.ErrorCodeInvalidNamespace
}

// InvalidNamespaceAPIError is returned for a call request whose numeric api
// index has no mapping.
type InvalidNamespaceAPIError struct {
	API string
}

// Error implements the error interface.
func (e *InvalidNamespaceAPIError) Error() string {
	return fmt.Sprintf("urn: invalid namespace api %s", e.API)
}

// JSONRPCCode implements jsonrpc.Coder.
func (e *InvalidNamespaceAPIError) JSONRPCCode() jsonrpc.ErrorCode {
	return jsonrpc.ErrorCodeInvalidNamespaceAPI
}
