package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ErrorsField is the name of the append-only error log.
const ErrorsField = "errors"

// Update is a partial set of field values returned by a node.
type Update map[string]any

// ErrorEntry is one record of the error log.
type ErrorEntry struct {
	NodeID  string `json:"node" yaml:"node"`
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// String renders the entry as "node: message".
func (e ErrorEntry) String() string {
	return fmt.Sprintf("%s: %s", e.NodeID, e.Message)
}

// State is an immutable snapshot of the run state. The zero value is an
// empty state.
type State struct {
	values map[string]any
}

// Get returns the value of field and whether it is set.
func (s State) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// String returns field as a string, or "" when it is unset or not a string.
func (s State) String(field string) string {
	v, _ := s.values[field].(string)
	return v
}

// Fields returns the names of all set fields, sorted.
func (s State) Fields() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of set fields.
func (s State) Len() int {
	return len(s.values)
}

// Errors returns the error log entries in append order.
func (s State) Errors() []ErrorEntry {
	items, _ := s.values[ErrorsField].([]any)
	out := make([]ErrorEntry, 0, len(items))
	for _, item := range items {
		switch e := item.(type) {
		case ErrorEntry:
			out = append(out, e)
		case string:
			out = append(out, ErrorEntry{Message: e})
		default:
			out = append(out, ErrorEntry{Message: fmt.Sprint(e)})
		}
	}
	return out
}

// Map returns a shallow copy of the state's fields.
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		if items, ok := v.([]any); ok {
			v = slices.Clone(items)
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the state as a JSON object.
func (s State) MarshalJSON() ([]byte, error) {
	if s.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.values)
}
