package config

import (
	"fmt"
	"sort"
	"strings"
)

// Source is a read-only view of configuration keyed by dotted paths.
type Source interface {
	// String returns a mandatory string. It fails when the key is absent,
	// empty, or not a string.
	String(key string) (string, error)

	// OptionalString returns a string if present. It fails only when the
	// key holds a value of another type.
	OptionalString(key string) (string, bool, error)

	// OptionalNumber returns a number if present.
	OptionalNumber(key string) (float64, bool, error)

	// OptionalBool returns a boolean if present.
	OptionalBool(key string) (bool, bool, error)
}

// TypeError reports a key holding a value of the wrong type.
type TypeError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("config key %q: want %s, got %T", e.Key, e.Want, e.Got)
}

// Values is a Source over a flat map of dotted keys.
// The zero value is an empty, usable Values.
type Values map[string]any

// NewValues flattens a nested document into Values. Nested maps become
// dotted keys; every other value (including lists) is kept as a leaf.
func NewValues(doc map[string]any) Values {
	v := Values{}
	flatten("", doc, v)
	return v
}

func flatten(prefix string, m map[string]any, out Values) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = val
	}
}

// Set stores a value at key, replacing any previous value.
func (v Values) Set(key string, val any) {
	v[key] = val
}

// Keys returns every key in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Nested rebuilds the nested document form of v.
func (v Values) Nested() map[string]any {
	root := map[string]any{}
	for _, key := range v.Keys() {
		parts := strings.Split(key, ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = v[key]
	}
	return root
}

// String implements Source.
func (v Values) String(key string) (string, error) {
	s, ok, err := v.OptionalString(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("missing required config value at %q", key)
	}
	return s, nil
}

// OptionalString implements Source.
func (v Values) OptionalString(key string) (string, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return "", false, nil
	}
	s, ok := val.(string)
	if !ok {
		return "", false, &TypeError{Key: key, Want: "string", Got: val}
	}
	return s, true, nil
}

// OptionalNumber implements Source.
func (v Values) OptionalNumber(key string) (float64, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return 0, false, nil
	}
	switch n := val.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case uint64:
		return float64(n), true, nil
	default:
		return 0, false, &TypeError{Key: key, Want: "number", Got: val}
	}
}

// OptionalBool implements Source.
func (v Values) OptionalBool(key string) (bool, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return false, false, nil
	}
	b, ok := val.(bool)
	if !ok {
		return false, false, &TypeError{Key: key, Want: "bool", Got: val}
	}
	return b, true, nil
}
