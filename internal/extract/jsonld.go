package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	graphKey   = "@graph"
	contextKey = "@context"
)

// ParseJSONLD decodes one JSON-LD script body into its object nodes. Top-level
// arrays and @graph containers are flattened; non-object values are dropped.
func ParseJSONLD(raw []byte) ([]Fragment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON-LD", ErrParse)
	}
	return flatten(raw), nil
}

func flatten(raw json.RawMessage) []Fragment {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []Fragment
		for _, item := range items {
			out = append(out, flatten(item)...)
		}
		return out
	case '{':
		var obj Fragment
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		graph, ok := obj[graphKey]
		if !ok {
			return []Fragment{obj}
		}
		// The container's own keys precede its nodes; a bare @context adds nothing.
		delete(obj, graphKey)
		delete(obj, contextKey)
		var out []Fragment
		if len(obj) > 0 {
			out = append(out, obj)
		}
		return append(out, flatten(graph)...)
	}
	return nil
}

// TypeName resolves a JSON-LD @type value. Arrays resolve to their first string.
func TypeName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if err := json.Unmarshal(item, &s); err == nil && s != "" {
				return s
			}
		}
	}
	return ""
}
