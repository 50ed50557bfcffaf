package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Model is implemented by domain entities that must never be stored in an
// audit record whole. Sanitization replaces them with a small identifying
// projection so records stay compact and free of object graphs.
type Model interface {
	ModelType() string
	TableName() string
	IdentityFields() map[string]interface{}
}

// MaxDepth bounds recursive sanitization. Anything deeper is replaced with
// a marker string rather than truncating silently.
const MaxDepth = 8

// Sanitize converts an arbitrary value into a JSON-safe form: instants
// become ISO 8601 strings, map keys become strings, domain models become
// identity projections, cycles and over-deep nesting become marker strings.
// Sanitize never panics; an internal failure yields {"error": reason}.
func Sanitize(v interface{}) (out interface{}) {
	defer func() {
		if r := recover(); r != nil {
			out = map[string]interface{}{"error": fmt.Sprintf("%v", r)}
		}
	}()
	return sanitize(v, 0, map[uintptr]struct{}{})
}

// SanitizeMap sanitizes every value of a string-keyed map in place order.
func SanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Sanitize(v)
	}
	return out
}

func sanitize(v interface{}, depth int, seen map[uintptr]struct{}) interface{} {
	if v == nil {
		return nil
	}
	if depth > MaxDepth {
		return fmt.Sprintf("<max_depth_exceeded:%s>", typeName(v))
	}

	switch tv := v.(type) {
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	case *time.Time:
		if tv == nil {
			return nil
		}
		return tv.UTC().Format(time.RFC3339)
	case time.Duration:
		return tv.String()
	case uuid.UUID:
		return tv.String()
	case *uuid.UUID:
		if tv == nil {
			return nil
		}
		return tv.String()
	case json.RawMessage:
		return string(tv)
	case Model:
		return modelProjection(tv, depth, seen)
	case error:
		return safeString(tv)
	case string:
		return tv
	case bool:
		return tv
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return tv
	case float32:
		return sanitizeFloat(float64(tv))
	case float64:
		return sanitizeFloat(tv)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Ptr {
			ptr := rv.Pointer()
			if _, ok := seen[ptr]; ok {
				return fmt.Sprintf("<circular_reference:%s>", typeName(v))
			}
			seen[ptr] = struct{}{}
			defer delete(seen, ptr)
		}
		return sanitize(rv.Elem().Interface(), depth, seen)

	case reflect.Map:
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return fmt.Sprintf("<circular_reference:%s>", typeName(v))
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)

		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := stringifyKey(iter.Key())
			out[key] = sanitize(iter.Value().Interface(), depth+1, seen)
		}
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return fmt.Sprintf("<circular_reference:%s>", typeName(v))
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return sanitizeSequence(rv, depth, seen)

	case reflect.Array:
		return sanitizeSequence(rv, depth, seen)

	case reflect.Struct:
		return sanitizeStruct(rv, depth, seen)

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("<unserializable:%s>", typeName(v))

	default:
		return safeString(v)
	}
}

func sanitizeSequence(rv reflect.Value, depth int, seen map[uintptr]struct{}) interface{} {
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = sanitize(rv.Index(i).Interface(), depth+1, seen)
	}
	return out
}

func sanitizeStruct(rv reflect.Value, depth int, seen map[uintptr]struct{}) interface{} {
	rt := rv.Type()
	out := make(map[string]interface{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			parsed := parseJSONTag(tag)
			if parsed == "-" {
				continue
			}
			if parsed != "" {
				name = parsed
			}
		}
		out[name] = sanitize(rv.Field(i).Interface(), depth+1, seen)
	}
	return out
}

func modelProjection(m Model, depth int, seen map[uintptr]struct{}) interface{} {
	out := map[string]interface{}{
		"_model_type": m.ModelType(),
		"_table_name": m.TableName(),
	}
	for k, v := range m.IdentityFields() {
		out[k] = sanitize(v, depth+1, seen)
	}
	return out
}

func sanitizeFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprintf("%v", f)
	}
	return f
}

func stringifyKey(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprintf("%v", key.Interface())
}

func parseJSONTag(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}

// safeString renders a value through its Stringer or error interface,
// tolerating implementations that panic.
func safeString(v interface{}) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unserializable:%s>", typeName(v))
		}
	}()
	switch tv := v.(type) {
	case error:
		return tv.Error()
	case fmt.Stringer:
		return tv.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	return t.String()
}

// ComputeDiff compares two state maps and returns per-key {old, new} pairs
// for every key whose sanitized value changed. Keys missing on one side
// appear with a nil counterpart.
func ComputeDiff(oldState, newState map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for k, ov := range oldState {
		nv, ok := newState[k]
		so := Sanitize(ov)
		sn := Sanitize(nv)
		if !ok {
			diff[k] = map[string]interface{}{"old": so, "new": nil}
			continue
		}
		if !reflect.DeepEqual(so, sn) {
			diff[k] = map[string]interface{}{"old": so, "new": sn}
		}
	}
	for k, nv := range newState {
		if _, ok := oldState[k]; !ok {
			diff[k] = map[string]interface{}{"old": nil, "new": Sanitize(nv)}
		}
	}
	return diff
}
