package state

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Policy is the merge discipline of a field.
type Policy int

const (
	// Overwrite replaces the previous value with the newest one.
	Overwrite Policy = iota
	// Append concatenates new values onto the existing sequence.
	Append
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Field declares one state field.
type Field struct {
	Name   string
	Policy Policy
}

// UnknownFieldError is returned when a strict schema receives an update for a
// field it does not declare.
type UnknownFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown state field %q", e.Field)
}

// Schema decides how updates are merged into a State.
type Schema struct {
	policies map[string]Policy
	strict   bool
}

// NewSchema returns a schema declaring fields. The error log is always
// declared as the append field; any other field declared Append is treated
// as Overwrite, since only the error log accumulates.
func NewSchema(strict bool, fields ...Field) *Schema {
	s := &Schema{
		policies: map[string]Policy{ErrorsField: Append},
		strict:   strict,
	}
	for _, f := range fields {
		if f.Name == ErrorsField {
			continue
		}
		s.policies[f.Name] = Overwrite
	}
	return s
}

// Lenient returns a schema that accepts any field as Overwrite.
func Lenient() *Schema {
	return NewSchema(false)
}

// Strict reports whether undeclared fields are rejected.
func (s *Schema) Strict() bool {
	return s.strict
}

// Fields returns the declared fields sorted by name, error log included.
func (s *Schema) Fields() []Field {
	names := slices.Sorted(maps.Keys(s.policies))
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n, Policy: s.policies[n]})
	}
	return out
}

// PolicyOf returns the policy of field and whether the schema accepts it.
func (s *Schema) PolicyOf(field string) (Policy, bool) {
	if p, ok := s.policies[field]; ok {
		return p, true
	}
	return Overwrite, !s.strict
}

// Seed returns the initial state: an empty error log and nothing else.
func (s *Schema) Seed() State {
	return State{values: map[string]any{ErrorsField: []any{}}}
}

// Merge applies update to current and returns the result. current is never
// modified. In a strict schema an undeclared field fails the whole update
// with *UnknownFieldError and nothing is applied.
func (s *Schema) Merge(current State, update Update) (State, error) {
	for field := range update {
		if _, ok := s.PolicyOf(field); !ok {
			return current, &UnknownFieldError{Field: field}
		}
	}

	next := make(map[string]any, len(current.values)+len(update))
	maps.Copy(next, current.values)

	// Sorted iteration keeps the result independent of map order.
	for _, field := range slices.Sorted(maps.Keys(update)) {
		value := update[field]
		policy, _ := s.PolicyOf(field)
		if policy == Append {
			next[field] = appendValues(next[field], value)
			continue
		}
		next[field] = value
	}
	return State{values: next}, nil
}

// View returns the state seen by a node: updates, in completion order,
// merged over a seeded state, plus the error log of shared. Fields written
// elsewhere in shared are not visible.
func (s *Schema) View(shared State, updates ...Update) (State, error) {
	view := s.Seed()
	for _, u := range updates {
		next, err := s.Merge(view, u)
		if err != nil {
			return State{}, err
		}
		view = next
	}
	if v, ok := shared.values[ErrorsField]; ok {
		view.values[ErrorsField] = v
	}
	return view, nil
}

// appendValues concatenates add onto existing without touching existing's
// backing array. A slice add contributes each element; anything else is a
// single element.
func appendValues(existing, add any) []any {
	prev, _ := existing.([]any)
	out := make([]any, 0, len(prev)+1)
	out = append(out, prev...)

	if add == nil {
		return out
	}
	rv := reflect.ValueOf(add)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	}
	return append(out, add)
}
