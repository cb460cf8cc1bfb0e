package urn

import (
	"encoding/json"
	"strings"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// Well-known namespaces.
const (
	NamespaceAppbase = "appbase"
	NamespaceSteemd  = "steemd"
	NamespaceJSONRPC = "jsonrpc"
)

// Well-known apis.
const (
	APICondenser = "condenser_api"
	APIDatabase  = "database_api"
	APILogin     = "login_api"
	APIJSONRPC   = "jsonrpc"
)

// URN is the canonical identity of a JSON-RPC call.
//
// Two URNs are equal when their String forms are equal.
type URN struct {
	Namespace string
	API       string
	Method    string
	// Params are the decoded request params (numbers as json.Number).
	// nil when absent or JSON null.
	Params any
}

// String returns the canonical form:
//
//	namespace[.api].method[.params=<json>]
//
// The params suffix is present only for non-empty params.
func (u URN) String() string {
	var b strings.Builder
	b.WriteString(u.Namespace)
	if u.API != "" {
		b.WriteByte('.')
		b.WriteString(u.API)
	}
	b.WriteByte('.')
	b.WriteString(u.Method)

	if !isEmpty(u.Params) {
		canonical, err := Canonical(u.Params)
		if err == nil {
			b.WriteString(".params=")
			b.Write(canonical)
		}
	}
	return b.String()
}

// Prefix returns the URN without its params suffix. Policy lookups and
// metric labels use this form.
func (u URN) Prefix() string {
	return URN{Namespace: u.Namespace, API: u.API, Method: u.Method}.String()
}

// Equal reports whether u and other canonicalize identically.
func (u URN) Equal(other URN) bool {
	return u.String() == other.String()
}

// ToAppbase rewrites the call identified by u into a condenser_api call
// request carrying id:
//
//	{"jsonrpc":"2.0","id":id,"method":"call","params":["condenser_api",method,params]}
//
// Absent params become an empty array.
func ToAppbase(id json.RawMessage, u URN) (*jsonrpc.Request, error) {
	params := u.Params
	if params == nil {
		params = []any{}
	}
	raw, err := Canonical([]any{APICondenser, u.Method, params})
	if err != nil {
		return nil, err
	}
	return &jsonrpc.Request{
		ID:      id,
		Version: jsonrpc.Version,
		Method:  "call",
		Params:  raw,
	}, nil
}
