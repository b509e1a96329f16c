// Package flatten turns nested JSON-like values into a single-level list of
// composite keys.
//
// EXAMPLE:
//
//	{"user": {"name": "ann"}, "entities": {"media": [{"media_url": "u"}]}}
//
// flattens to
//
//	user_name                  → "ann"
//	entities_media_0_media_url → "u"
//
// Sequence indices are path segments exactly like object keys. Leaf values are
// passed through untouched.
package flatten

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultSeparator joins path segments when the caller passes "".
const DefaultSeparator = "_"

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that remembers member order. Decode produces it so
// Flatten can report keys in the order they appear in the payload.
type Object []Member

// Get returns the value for key and whether it exists.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Entry is one flattened leaf.
type Entry struct {
	Key   string
	Value any
}

// Map is the flattened form: entries in discovery order.
type Map []Entry

// Get returns the leaf stored under key.
func (m Map) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Len is the number of leaves.
func (m Map) Len() int { return len(m) }

// Keys returns the composite keys in order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// Flatten walks v depth-first and returns one entry per leaf value.
//
// Supported containers are Object, map[string]any (visited in sorted key order,
// Go maps have none of their own) and []any. Anything else is a leaf. Empty
// containers contribute no entries, and a bare scalar at the root has no path
// so it yields an empty Map.
func Flatten(v any, sep string) Map {
	if sep == "" {
		sep = DefaultSeparator
	}
	out := Map{}
	switch v.(type) {
	case Object, map[string]any, []any:
		walk(&out, nil, v, sep)
	}
	return out
}

func walk(out *Map, path []string, v any, sep string) {
	switch node := v.(type) {
	case Object:
		for _, m := range node {
			walk(out, append(path, m.Key), m.Value, sep)
		}
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(out, append(path, k), node[k], sep)
		}
	case []any:
		for i, item := range node {
			walk(out, append(path, strconv.Itoa(i)), item, sep)
		}
	default:
		*out = append(*out, Entry{Key: strings.Join(path, sep), Value: v})
	}
}
