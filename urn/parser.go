package urn

import (
	"encoding/json"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// DefaultMemoSize bounds the number of method strings a Parser remembers.
const DefaultMemoSize = 10000

// numericAPIs maps legacy numeric api indices used by call requests.
var numericAPIs = map[string]string{
	"0": APIDatabase,
	"1": APILogin,
}

type methodParts struct {
	namespace string
	api       string
	method    string
}

// Parser canonicalizes JSON-RPC requests into URNs.
//
// Parsing of the method string is memoized per Parser; params are never
// memoized. A Parser is safe for concurrent use.
type Parser struct {
	namespaces map[string]struct{}
	memo       *xsync.Map[string, methodParts]
	memoSize   int
}

// NewParser returns a parser that accepts the built-in namespaces plus the
// given upstream names.
func NewParser(namespaces ...string) *Parser {
	known := map[string]struct{}{
		NamespaceAppbase: {},
		NamespaceSteemd:  {},
		NamespaceJSONRPC: {},
	}
	for _, ns := range namespaces {
		if ns != "" {
			known[ns] = struct{}{}
		}
	}
	return &Parser{
		namespaces: known,
		memo:       xsync.NewMap[string, methodParts](),
		memoSize:   DefaultMemoSize,
	}
}

// IsKnown reports whether ns is an accepted namespace.
func (p *Parser) IsKnown(ns string) bool {
	_, ok := p.namespaces[ns]
	return ok
}

// Parse canonicalizes req.
func (p *Parser) Parse(req *jsonrpc.Request) (URN, error) {
	params, err := decodeParams(req.Params)
	if err != nil {
		return URN{}, &InvalidNamespaceError{Namespace: req.Method}
	}

	if req.Method == "call" {
		return p.parseCall(params)
	}

	parts, err := p.parseMethod(req.Method)
	if err != nil {
		return URN{}, err
	}
	return URN{
		Namespace: parts.namespace,
		API:       parts.api,
		Method:    parts.method,
		Params:    params,
	}, nil
}

// ParseRaw parses a single request body and canonicalizes it.
func (p *Parser) ParseRaw(body []byte) (URN, error) {
	req := new(jsonrpc.Request)
	if err := json.Unmarshal(body, req); err != nil {
		return URN{}, jsonrpc.ErrParse()
	}
	return p.Parse(req)
}

func (p *Parser) parseMethod(method string) (methodParts, error) {
	if parts, ok := p.memo.Load(method); ok {
		return parts, nil
	}

	parts, err := p.splitMethod(method)
	if err != nil {
		return methodParts{}, err
	}
	if p.memo.Size() < p.memoSize {
		p.memo.Store(method, parts)
	}
	return parts, nil
}

func (p *Parser) splitMethod(method string) (methodParts, error) {
	segments := strings.Split(method, ".")
	for _, s := range segments {
		if s == "" {
			return methodParts{}, &InvalidNamespaceError{Namespace: method}
		}
	}

	switch len(segments) {
	case 1:
		return methodParts{namespace: NamespaceSteemd, api: APIDatabase, method: method}, nil

	case 2:
		if strings.HasSuffix(segments[0], "_api") {
			return methodParts{namespace: NamespaceAppbase, api: segments[0], method: segments[1]}, nil
		}
		if !p.IsKnown(segments[0]) {
			return methodParts{}, &InvalidNamespaceError{Namespace: segments[0]}
		}
		if segments[0] == NamespaceJSONRPC {
			return methodParts{namespace: NamespaceAppbase, api: APIJSONRPC, method: segments[1]}, nil
		}
		return methodParts{namespace: segments[0], method: segments[1]}, nil

	case 3:
		if !p.IsKnown(segments[0]) {
			return methodParts{}, &InvalidNamespaceError{Namespace: segments[0]}
		}
		if segments[0] == NamespaceJSONRPC {
			return methodParts{namespace: NamespaceAppbase, api: segments[1], method: segments[2]}, nil
		}
		return methodParts{namespace: segments[0], api: segments[1], method: segments[2]}, nil
	}

	return methodParts{}, &InvalidNamespaceError{Namespace: method}
}

// parseCall handles call(api, method[, params]).
func (p *Parser) parseCall(params any) (URN, error) {
	args, ok := params.([]any)
	if !ok || len(args) < 2 || len(args) > 3 {
		return URN{}, &InvalidNamespaceError{Namespace: "call"}
	}

	api, err := callAPI(args[0])
	if err != nil {
		return URN{}, err
	}
	method, ok := args[1].(string)
	if !ok || method == "" || strings.Contains(method, ".") {
		return URN{}, &InvalidNamespaceError{Namespace: "call"}
	}

	if len(args) == 2 {
		return URN{Namespace: NamespaceAppbase, API: api, Method: method}, nil
	}

	inner := args[2]
	_, isObject := inner.(map[string]any)
	namespace := NamespaceSteemd
	if api == APICondenser || api == APIJSONRPC || isObject {
		namespace = NamespaceAppbase
	}
	return URN{Namespace: namespace, API: api, Method: method, Params: inner}, nil
}

func callAPI(v any) (string, error) {
	switch api := v.(type) {
	case string:
		if api == "" || strings.Contains(api, ".") {
			return "", &InvalidNamespaceError{Namespace: "call"}
		}
		return api, nil
	case json.Number:
		if _, err := api.Int64(); err != nil {
			return "", &InvalidNamespaceError{Namespace: "call"}
		}
		mapped, ok := numericAPIs[api.String()]
		if !ok {
			return "", &InvalidNamespaceAPIError{API: api.String()}
		}
		return mapped, nil
	default:
		return "", &InvalidNamespaceError{Namespace: "call"}
	}
}
