package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Version is the only supported protocol version.
const Version = "2.0"

var nullID = json.RawMessage("null")

// Request is a single JSON-RPC request object.
//
// ID and Params are kept raw so they can be echoed and canonicalized without
// losing precision. An absent id is a nil ID; a JSON null id is "null".
type Request struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Version string          `json:"jsonrpc" validate:"required,version"`
	Method  string          `json:"method" validate:"required"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IDOrNull returns the request id, or JSON null when the id was absent.
func (r *Request) IDOrNull() json.RawMessage {
	if len(r.ID) == 0 {
		return nullID
	}
	return r.ID
}

// HasParams reports whether params were supplied (including an explicit null).
func (r *Request) HasParams() bool {
	return len(r.Params) > 0
}

// WithID returns a shallow copy of r carrying id.
func (r *Request) WithID(id json.RawMessage) *Request {
	clone := *r
	clone.ID = id
	return &clone
}

// Response is a single JSON-RPC response object.
//
// Error is kept raw so that upstream error objects of any shape are passed
// through untouched; NewErrorResponse fills it from an *Error.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// IsError reports whether the response carries an error member.
func (r *Response) IsError() bool {
	return len(r.Error) > 0 && !bytes.Equal(bytes.TrimSpace(r.Error), nullID)
}

// WithID returns a shallow copy of r carrying id.
func (r *Response) WithID(id json.RawMessage) *Response {
	clone := *r
	clone.ID = id
	return &clone
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	if len(id) == 0 {
		id = nullID
	}
	raw, err := json.Marshal(rpcErr)
	if err != nil {
		raw = []byte(`{"code":-32603,"message":"Internal error"}`)
	}
	return &Response{Version: Version, ID: id, Error: raw}
}

// Sentinel errors for response validation.
var (
	ErrInvalidResponse = errors.New("jsonrpc: invalid response")
)

// ValidateResponse performs the generic shape check on a response: protocol
// version 2.0 and exactly one of result or error.
func ValidateResponse(r *Response) error {
	if r == nil {
		return ErrInvalidResponse
	}
	if r.Version != Version {
		return ErrInvalidResponse
	}
	hasResult := len(r.Result) > 0
	if hasResult == r.IsError() {
		return ErrInvalidResponse
	}
	return nil
}

// DecodeResponse decodes and validates a single response object.
func DecodeResponse(raw []byte) (*Response, error) {
	resp := new(Response)
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}
	if err := ValidateResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// IsBatch reports whether body holds a JSON array.
func IsBatch(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Parse decodes an inbound body into one or more requests.
//
// batch reports whether the body was an array. Malformed JSON yields a parse
// error; an empty batch or any member failing validation yields an invalid
// request error.
func Parse(body []byte, v *Validator) (reqs []*Request, batch bool, err error) {
	if !json.Valid(body) {
		return nil, false, ErrParse()
	}

	if IsBatch(body) {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, true, ErrInvalidRequest()
		}
		if len(raws) == 0 {
			return nil, true, ErrInvalidRequest()
		}
		reqs = make([]*Request, 0, len(raws))
		for _, raw := range raws {
			req, err := decodeRequest(raw, v)
			if err != nil {
				return nil, true, err
			}
			reqs = append(reqs, req)
		}
		return reqs, true, nil
	}

	req, err := decodeRequest(body, v)
	if err != nil {
		return nil, false, err
	}
	return []*Request{req}, false, nil
}

func decodeRequest(raw json.RawMessage, v *Validator) (*Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidRequest()
	}
	req := new(Request)
	if err := json.Unmarshal(trimmed, req); err != nil {
		return nil, ErrInvalidRequest()
	}
	if v != nil {
		if err := v.Validate(req); err != nil {
			return nil, ErrInvalidRequest()
		}
	}
	if !validID(req.ID) || !validParams(req.Params) {
		return nil, ErrInvalidRequest()
	}
	return req, nil
}

func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

func validParams(params json.RawMessage) bool {
	if len(params) == 0 {
		return true
	}
	switch params[0] {
	case '[', '{', 'n':
		return true
	default:
		return false
	}
}
