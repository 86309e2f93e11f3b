package envelope

import (
	"encoding/json"
	"math"
	"strconv"
)

// Wire tokens for non-finite floats, which JSON numbers cannot carry.
const (
	TokenNaN    = "NaN"
	TokenPosInf = "Infinity"
	TokenNegInf = "-Infinity"
)

type responseJSON Response

// MarshalJSON writes non-finite float values as string tokens.
func (r Response) MarshalJSON() ([]byte, error) {
	w := responseJSON(r)
	w.Value = wireFloats(r.Value)
	return json.Marshal(w)
}

type columnJSON Column

// MarshalJSON writes non-finite float values as string tokens.
func (c Column) MarshalJSON() ([]byte, error) {
	w := columnJSON(c)
	w.Values = wireFloats(c.Values)
	return json.Marshal(w)
}

// Float reads a decoded JSON value written by MarshalJSON back into a
// float64, accepting plain numbers and the non-finite tokens.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		switch x {
		case TokenNaN:
			return math.NaN(), true
		case TokenPosInf:
			return math.Inf(1), true
		case TokenNegInf:
			return math.Inf(-1), true
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func floatToken(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return TokenNaN, true
	case math.IsInf(f, 1):
		return TokenPosInf, true
	case math.IsInf(f, -1):
		return TokenNegInf, true
	}
	return "", false
}

// wireFloats replaces non-finite floats in a scalar or float slice. Slices
// with only finite values are returned unchanged.
func wireFloats(v any) any {
	switch x := v.(type) {
	case float64:
		if tok, ok := floatToken(x); ok {
			return tok
		}
	case float32:
		if tok, ok := floatToken(float64(x)); ok {
			return tok
		}
	case []float64:
		return wireFloatSlice(x)
	case []float32:
		return wireFloatSlice(x)
	}
	return v
}

func wireFloatSlice[F float32 | float64](x []F) any {
	var out []any
	for i, f := range x {
		tok, bad := floatToken(float64(f))
		if bad && out == nil {
			out = make([]any, len(x))
			for j := 0; j < i; j++ {
				out[j] = x[j]
			}
		}
		if out == nil {
			continue
		}
		if bad {
			out[i] = tok
		} else {
			out[i] = f
		}
	}
	if out == nil {
		return x
	}
	return out
}
