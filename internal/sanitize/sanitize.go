// Package sanitize reduces arbitrary handler-returned values to the
// restricted JSON domain defined in spec §4.7, without the double
// encode/decode round trip the original implementation uses (spec §9
// Design Notes).
package sanitize

import (
	"math"
	"reflect"
	"strings"
)

// Value converts v to the restricted domain: null/string/bool/int/finite
// float pass through; sequences become []any dropping unsupported elements;
// mappings become map[string]any dropping non-string keys and unsupported
// values; anything else is dropped entirely.
//
// A nil top-level result is the caller's responsibility to normalize to an
// empty object (spec §4.7) — this function returns nil for nil/unsupported
// top-level input.
func Value(v any) any {
	out, _ := sanitizeValue(reflect.ValueOf(v))
	return out
}

func sanitizeValue(rv reflect.Value) (any, bool) {
	if !rv.IsValid() {
		return nil, true
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return sanitizeValue(rv.Elem())

	case reflect.String:
		return rv.String(), true

	case reflect.Bool:
		return rv.Bool(), true

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true

	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if ev, ok := sanitizeValue(rv.Index(i)); ok {
				out = append(out, ev)
			}
		}
		return out, true

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() == reflect.Interface {
				key = key.Elem()
			}
			if key.Kind() != reflect.String {
				continue // non-string keys are dropped
			}
			if vv, ok := sanitizeValue(iter.Value()); ok {
				out[key.String()] = vv
			}
		}
		return out, true

	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, skip := jsonFieldName(field)
			if skip {
				continue
			}
			if vv, ok := sanitizeValue(rv.Field(i)); ok {
				out[name] = vv
			}
		}
		return out, true

	default:
		return nil, false
	}
}

func jsonFieldName(field reflect.StructField) (name string, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if tag == "" {
		return field.Name, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "" {
		return field.Name, false
	}
	return parts[0], false
}
