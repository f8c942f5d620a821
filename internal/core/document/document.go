package document

import (
	"encoding/json"
	"strings"
)

// Document is a schemaless JSON-like record: a source document, an aggregate,
// or a partial update body. Nested values are maps, slices and scalars.
type Document map[string]interface{}

// Get resolves a dot-separated path. Missing intermediate objects yield false.
func (d Document) Get(path string) (interface{}, bool) {
	if d == nil || path == "" {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dot-separated path, creating intermediate objects.
func (d Document) Set(path string, value interface{}) {
	if d == nil || path == "" {
		return
	}
	parts := strings.Split(path, ".")
	cur := map[string]interface{}(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// String returns the value at path when it is a non-empty string.
func (d Document) String(path string) string {
	v, ok := d.Get(path)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64, float32, int, int64, int32, uint64, uint32:
		return Decimal(val).String()
	}
	return ""
}

// Object returns the nested object at key, or nil.
func (d Document) Object(key string) map[string]interface{} {
	m, _ := asMap(d[key])
	return m
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(DeepCopy(map[string]interface{}(d)).(map[string]interface{}))
}

// Defaults returns a new document holding d's fields overlaid on base,
// d winning on conflicts. Neither input is modified.
func Defaults(d, base Document) Document {
	out := make(Document, len(d)+len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range d {
		out[k] = v
	}
	return out
}

// DeepCopy copies maps and slices recursively; scalars are returned as is.
func DeepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return Document(DeepCopy(map[string]interface{}(val)).(map[string]interface{}))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	}
	return v
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// AsMap exposes the map view of a nested object value.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	return asMap(v)
}
