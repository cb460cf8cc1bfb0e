package urn

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Canonical produces a deterministic, compact JSON representation of v.
// Object keys are sorted at every depth and HTML characters are not escaped,
// so two semantically identical documents always serialize identically.
func Canonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalMap(val)
	case []any:
		return canonicalSlice(val)
	default:
		return encode(v)
	}
}

// decodeParams decodes raw params keeping numbers as json.Number so that
// large integers survive canonicalization untouched.
func decodeParams(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func canonicalMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := encode(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := Canonical(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := Canonical(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// isEmpty reports whether params count as absent for URN purposes.
func isEmpty(params any) bool {
	switch p := params.(type) {
	case nil:
		return true
	case []any:
		return len(p) == 0
	case map[string]any:
		return len(p) == 0
	default:
		return false
	}
}
