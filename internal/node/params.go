package node

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Params is the opaque parameter bag of a node. Values arrive in the shapes
// produced by the specification decoders: numbers are usually float64.
type Params map[string]any

// String returns the string param key, or def when it is absent.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string, got %T", key, v)
	}
	return s, nil
}

// Int returns the integer param key, or def when it is absent. Whole floats
// and numeric strings are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("param %q must be a whole number, got %v", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("param %q must be an integer: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("param %q must be an integer, got %T", key, v)
	}
}

// Bool returns the boolean param key, or def when it is absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("param %q must be a boolean: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("param %q must be a boolean, got %T", key, v)
	}
}
