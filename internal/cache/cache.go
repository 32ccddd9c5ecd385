// Package cache persists the sections of a published reconciliation snapshot
// so a restarted process can serve the last run without reprocessing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Store saves and loads named sections. Load reports absence with false.
type Store interface {
	Save(ctx context.Context, name string, v interface{}) error
	Load(ctx context.Context, name string, dst interface{}) (bool, error)
	ClearAll(ctx context.Context) error
}

// encode marshals v as JSON. When v holds values encoding/json rejects the
// whole section is coerced and encoded again.
func encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err == nil {
		return b, nil
	}
	b, cerr := json.Marshal(coerce(reflect.ValueOf(v)))
	if cerr != nil {
		return nil, fmt.Errorf("encode section: %w", err)
	}
	return b, nil
}

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// coerce rebuilds v as plain maps, slices and scalars. NaN, infinities,
// channels, funcs and complex numbers become strings.
func coerce(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return nil
		}
		if raw, err := v.Interface().(json.Marshaler).MarshalJSON(); err == nil {
			return json.RawMessage(raw)
		}
		return fmt.Sprint(v.Interface())
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return coerce(v.Elem())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprint(v.Interface())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		out := make([]interface{}, v.Len())
		for i := range out {
			out[i] = coerce(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = coerce(iter.Value())
		}
		return out
	case reflect.Struct:
		return coerceStruct(v)
	default:
		return v.Interface()
	}
}

func coerceStruct(v reflect.Value) map[string]interface{} {
	t := v.Type()
	out := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		omitEmpty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		out[name] = coerce(fv)
	}
	return out
}

// decode fills dst from a stored section.
func decode(name string, b []byte, dst interface{}) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode section %s: %w", name, err)
	}
	return nil
}
