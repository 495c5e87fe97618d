// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// ErrUnsupportedValue is returned when a Go value has no representation in
// the Value union.
var ErrUnsupportedValue = errors.New("unsupported value")

// Value is anything that may cross the bridge as an argument or a result.
// The set of implementations is closed: Null, Bool, Int, Float, String,
// List, Map and Handle.
type Value interface {
	isValue()
}

// Null is the absent or undefined value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is an integral number. It round-trips exactly.
type Int int64

// Float is a floating point number.
type Float float64

// String is a UTF-8 string.
type String string

// List is an ordered list of values.
type List []Value

// Map is a string keyed map of values.
type Map map[string]Value

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (String) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}
func (Handle) isValue() {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return true
	case *Handle:
		return t == nil
	}
	return false
}

// ValueOf converts a native Go value into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case *Handle:
		// *Handle also satisfies Value; keep it inside the union.
		if t == nil {
			return Null{}, nil
		}
		return *t, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(t), nil
	case uint16:
		return Int(t), nil
	case uint32:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, t)
		}
		return Int(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, t)
		}
		return Int(t), nil
	case float32:
		return checkFloat(float64(t))
	case float64:
		return checkFloat(t)
	case string:
		return String(t), nil
	case []string:
		l := make(List, len(t))
		for i, s := range t {
			l[i] = String(s)
		}
		return l, nil
	case []Handle:
		l := make(List, len(t))
		for i, h := range t {
			l[i] = h
		}
		return l, nil
	case []any:
		l := make(List, len(t))
		for i, e := range t {
			v, err := ValueOf(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			l[i] = v
		}
		return l, nil
	case map[string]any:
		m := make(Map, len(t))
		for k, e := range t {
			v, err := ValueOf(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = v
		}
		return m, nil
	case map[string]string:
		m := make(Map, len(t))
		for k, s := range t {
			m[k] = String(s)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
}

// MustValueOf is like ValueOf but panics on unsupported input. It is meant
// for literals.
func MustValueOf(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return Float(f), nil
}

// Native converts v into plain Go values: nil, bool, int64, float64,
// string, []any, map[string]any and Handle.
func Native(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Handle:
		return t
	case *Handle:
		if t == nil {
			return nil
		}
		return *t
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Native(e)
		}
		return out
	case Map:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Native(e)
		}
		return out
	}
	return nil
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode maps v onto out using the json tags of out's fields. Handles are
// kept as Handle values.
func Decode(v Value, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       handleHook,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(Native(v)); err != nil {
		return fmt.Errorf("decode %T: %w", out, err)
	}
	return nil
}

var handleType = reflect.TypeOf(Handle{})

func handleHook(from, to reflect.Type, data any) (any, error) {
	if from == handleType && to == handleType {
		return data, nil
	}
	if to == handleType {
		if m, ok := data.(map[string]any); ok {
			h, ok := handleFromMap(m)
			if !ok {
				return nil, fmt.Errorf("%w: not a node handle", ErrUnsupportedValue)
			}
			return h, nil
		}
	}
	return data, nil
}

// AsString returns the string held by v.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsBool returns the boolean held by v.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsHandle returns the node handle held by v.
func AsHandle(v Value) (Handle, bool) {
	h, ok := v.(Handle)
	return h, ok
}

// AsStrings returns the elements of a list of strings.
func AsStrings(v Value) ([]string, bool) {
	l, ok := v.(List)
	if !ok {
		return nil, false
	}
	out := make([]string, len(l))
	for i, e := range l {
		s, ok := e.(String)
		if !ok {
			return nil, false
		}
		out[i] = string(s)
	}
	return out, true
}

// AsHandles returns the elements of a list of node handles.
func AsHandles(v Value) ([]Handle, bool) {
	l, ok := v.(List)
	if !ok {
		return nil, false
	}
	out := make([]Handle, len(l))
	for i, e := range l {
		h, ok := e.(Handle)
		if !ok {
			return nil, false
		}
		out[i] = h
	}
	return out, true
}

// AsHandleMap returns a map of name to node handle.
func AsHandleMap(v Value) (map[string]Handle, bool) {
	m, ok := v.(Map)
	if !ok {
		return nil, false
	}
	out := make(map[string]Handle, len(m))
	for k, e := range m {
		h, ok := e.(Handle)
		if !ok {
			return nil, false
		}
		out[k] = h
	}
	return out, true
}
