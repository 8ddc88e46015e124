package sipl

import (
	stdjson "encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Metadata is free-form JSON-compatible data that rides along with an
// array. Each ChunkedArray owns its map exclusively.
type Metadata map[string]interface{}

// MetaFilename is the key pixel readers stamp with the source file path
const MetaFilename = "filename"

// Clone deep-copies maps and slices so the result shares no mutable state
// with m. Scalars are copied by value.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case Metadata:
		return x.Clone()
	case map[string]interface{}:
		return map[string]interface{}(Metadata(x).Clone())
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	case string, bool, int, int64, float64, stdjson.Number:
		return v
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

// cloneReflect deep-copies any map, slice, array, pointer or struct of
// exported fields. Unexported struct fields are copied by value.
func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return cloneReflect(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneReflect(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(cloneReflect(v.Field(i)))
			}
		}
		return out
	}
	return v
}

// normalizeNumbers replaces JSON numbers decoded as json.Number with int64
// when they are integers that fit, uint64 for larger non-negative
// integers, and float64 otherwise. Integers beyond 64 bits stay
// json.Number so no digits are lost.
func normalizeNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case Metadata:
		for k, el := range x {
			x[k] = normalizeNumbers(el)
		}
		return x
	case map[string]interface{}:
		for k, el := range x {
			x[k] = normalizeNumbers(el)
		}
		return x
	case []interface{}:
		for i, el := range x {
			x[i] = normalizeNumbers(el)
		}
		return x
	case stdjson.Number:
		s := string(x)
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
			if u, err := strconv.ParseUint(s, 10, 64); err == nil {
				return u
			}
			return x
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x
	}
	return v
}

// Keys returns the top-level keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten collapses nested maps into a single level, joining keys with sep.
// {"a": {"b": 1}} becomes {"a/b": 1} for sep "/".
func (m Metadata) Flatten(sep string) Metadata {
	out := Metadata{}
	flattenInto(out, m, "", sep)
	return out
}

func flattenInto(out, nested Metadata, parent, sep string) {
	for k, v := range nested {
		key := k
		if parent != "" {
			key = parent + sep + k
		}
		switch x := v.(type) {
		case Metadata:
			flattenInto(out, x, key, sep)
		case map[string]interface{}:
			flattenInto(out, Metadata(x), key, sep)
		default:
			out[key] = cloneValue(v)
		}
	}
}

// Nest expands sep-joined keys back into nested maps. It inverts Flatten.
func (m Metadata) Nest(sep string) Metadata {
	out := Metadata{}
	for k, v := range m {
		parts := strings.Split(k, sep)
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = cloneValue(v)
	}
	return out
}
