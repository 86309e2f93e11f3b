package types

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// GoType returns the Go representation used for values of a scalar kind, or
// of the element kind when t is an array kind.
func GoType(t DataType) (reflect.Type, bool) {
	if t.IsArray() {
		t = ElementOf(t)
	}
	switch t {
	case Boolean:
		return reflect.TypeOf(false), true
	case Byte:
		return reflect.TypeOf(int8(0)), true
	case Short:
		return reflect.TypeOf(int16(0)), true
	case Integer:
		return reflect.TypeOf(int32(0)), true
	case Long:
		return reflect.TypeOf(int64(0)), true
	case Float:
		return reflect.TypeOf(float32(0)), true
	case Double:
		return reflect.TypeOf(float64(0)), true
	case String:
		return reflect.TypeOf(""), true
	default:
		return nil, false
	}
}

// KindOf returns the scalar kind matching a Go value's dynamic type.
func KindOf(v any) (DataType, bool) {
	switch v.(type) {
	case bool:
		return Boolean, true
	case int8:
		return Byte, true
	case int16:
		return Short, true
	case int32:
		return Integer, true
	case int64:
		return Long, true
	case float32:
		return Float, true
	case float64:
		return Double, true
	case string:
		return String, true
	default:
		return None, false
	}
}

// Coerce converts a raw value into the Go representation of scalar kind t.
// Integers are range-checked; strings are parsed.
func Coerce(t DataType, v any) (any, error) {
	if !t.IsScalar() {
		return nil, fmt.Errorf("%s is not a scalar type", t)
	}
	if v == nil {
		return nil, fmt.Errorf("nil value for %s", t)
	}
	if k, ok := KindOf(v); ok && k == t {
		return v, nil
	}

	switch t {
	case String:
		if s, ok := v.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return fmt.Sprint(v), nil
	case Boolean:
		switch x := v.(type) {
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to %s", x, t)
			}
			return b, nil
		}
		rv := reflect.ValueOf(v)
		if rv.CanInt() {
			return rv.Int() != 0, nil
		}
		if rv.CanUint() {
			return rv.Uint() != 0, nil
		}
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	case Float, Double:
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert to %s: %w", t, err)
		}
		if t == Float {
			return float32(f), nil
		}
		return f, nil
	default:
		i, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert to %s: %w", t, err)
		}
		return narrow(t, i)
	}
}

// CoerceSlice converts a slice of raw values into a typed slice for array
// kind t (for example []int16 for SHORT_ARRAY).
func CoerceSlice(t DataType, v any) (any, error) {
	elem := ElementOf(t)
	if elem == None {
		return nil, fmt.Errorf("%s is not an array type", t)
	}
	goType, _ := GoType(elem)

	rv := reflect.ValueOf(v)
	if v == nil {
		return reflect.MakeSlice(reflect.SliceOf(goType), 0, 0).Interface(), nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a sequence for %s, got %T", t, v)
	}
	if rv.Type().Elem() == goType && rv.Kind() == reflect.Slice {
		return v, nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(goType), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := Coerce(elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(item))
	}
	return out.Interface(), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanFloat():
		return rv.Float(), nil
	case rv.CanInt():
		return float64(rv.Int()), nil
	case rv.CanUint():
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseInt(x, 0, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return rv.Int(), nil
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", u)
		}
		return int64(u), nil
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
			return 0, fmt.Errorf("value %v is not an integer", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

func narrow(t DataType, i int64) (any, error) {
	switch t {
	case Byte:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return nil, fmt.Errorf("value %d overflows %s", i, t)
		}
		return int8(i), nil
	case Short:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, fmt.Errorf("value %d overflows %s", i, t)
		}
		return int16(i), nil
	case Integer:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows %s", i, t)
		}
		return int32(i), nil
	case Long:
		return i, nil
	}
	return nil, fmt.Errorf("%s is not an integer type", t)
}
