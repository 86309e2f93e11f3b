package types

import (
	"math"
	"reflect"
	"testing"
)

const coerceTestPrefix = "types:coerce_test"

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		t       DataType
		in      any
		want    any
		wantErr bool
	}{
		{"short from int", Short, 42, int16(42), false},
		{"short overflow", Short, 70000, nil, true},
		{"byte from uint8", Byte, uint8(7), int8(7), false},
		{"long from float integral", Long, 12.0, int64(12), false},
		{"long from float fraction", Long, 12.5, nil, true},
		{"long from 2^63 float", Long, float64(1 << 63), nil, true},
		{"long from -2^63 float", Long, float64(-1 << 63), int64(math.MinInt64), false},
		{"long from NaN", Long, math.NaN(), nil, true},
		{"integer from hex string", Integer, "0x10", int32(16), false},
		{"float from double", Float, 1.5, float32(1.5), false},
		{"double from int", Double, int32(3), float64(3), false},
		{"double from string", Double, "2.25", 2.25, false},
		{"boolean from int", Boolean, 1, true, false},
		{"boolean from string", Boolean, "false", false, false},
		{"boolean from junk", Boolean, "maybe", nil, true},
		{"string from int", String, 5, "5", false},
		{"already typed", Integer, int32(9), int32(9), false},
		{"nil", Integer, nil, nil, true},
		{"not scalar", Table, 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.t, tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error, got %v", coerceTestPrefix, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", coerceTestPrefix, err)
			}
			if got != tt.want {
				t.Errorf("%s - Coerce(%s, %v) = %#v, want %#v", coerceTestPrefix, tt.t, tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceSlice(t *testing.T) {
	got, err := CoerceSlice(ShortArray, []any{1, int64(2), "3"})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", coerceTestPrefix, err)
	}
	if !reflect.DeepEqual(got, []int16{1, 2, 3}) {
		t.Errorf("%s - got %#v", coerceTestPrefix, got)
	}

	same := []float64{1.5}
	got, err = CoerceSlice(DoubleArray, same)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", coerceTestPrefix, err)
	}
	if !reflect.DeepEqual(got, same) {
		t.Errorf("%s - expected passthrough, got %#v", coerceTestPrefix, got)
	}

	empty, err := CoerceSlice(StringArray, nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", coerceTestPrefix, err)
	}
	if s, ok := empty.([]string); !ok || len(s) != 0 {
		t.Errorf("%s - expected empty []string, got %#v", coerceTestPrefix, empty)
	}

	if _, err := CoerceSlice(ByteArray, []int{1, 300}); err == nil {
		t.Errorf("%s - expected overflow error", coerceTestPrefix)
	}
	if _, err := CoerceSlice(Integer, []int{1}); err == nil {
		t.Errorf("%s - expected error for scalar kind", coerceTestPrefix)
	}
	if _, err := CoerceSlice(IntegerArray, 5); err == nil {
		t.Errorf("%s - expected error for non-sequence", coerceTestPrefix)
	}
}
