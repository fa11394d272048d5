// Package gog is the boundary to the GOG content-system: loosely-typed
// upstream documents, HTTP fetch primitives that report absence instead of
// erroring, retry, and the session/secure-link contract. It holds no
// archive state.
package gog

import (
	"encoding/json"
	"fmt"
)

// Document is an upstream JSON object of unknown shape. Field accessors are
// fallible and tolerant: a missing key or a type mismatch yields the zero
// value and ok=false, never a panic, mirroring how manifests with drifting
// schemas are consumed.
type Document map[string]any

// ParseDocument decodes raw JSON into a Document. Non-object JSON is an
// error: every upstream manifest and listing is an object at the top level.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// GetString returns the string at key.
func (d Document) GetString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// String returns the string at key or a default.
func (d Document) String(key, def string) string {
	if s, ok := d.GetString(key); ok {
		return s
	}
	return def
}

// GetInt returns the integer at key. JSON numbers arrive as float64; values
// with a fractional part are a mismatch.
func (d Document) GetInt(key string) (int64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Int returns the integer at key or a default.
func (d Document) Int(key string, def int64) int64 {
	if n, ok := d.GetInt(key); ok {
		return n
	}
	return def
}

// GetBool returns the boolean at key.
func (d Document) GetBool(key string) (bool, bool) {
	v, ok := d[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Bool returns the boolean at key or a default.
func (d Document) Bool(key string, def bool) bool {
	if b, ok := d.GetBool(key); ok {
		return b
	}
	return def
}

// GetArray returns the array at key.
func (d Document) GetArray(key string) ([]any, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// GetDocument returns the nested object at key.
func (d Document) GetDocument(key string) (Document, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Document(m), true
}

// Documents returns the array at key filtered to its object elements.
// Non-object elements are dropped rather than failing the whole read.
func (d Document) Documents(key string) []Document {
	arr, ok := d.GetArray(key)
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// Strings returns the array at key filtered to its string elements.
func (d Document) Strings(key string) []string {
	arr, ok := d.GetArray(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
