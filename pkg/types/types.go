// Package types implements the closed data-type algebra shared by channel
// configuration, type negotiation and response shaping.
package types

import (
	"fmt"
	"strings"
)

// DataType is a channel data-type tag.
type DataType int

const (
	None DataType = iota
	Alias
	Void

	Boolean
	Byte
	Short
	Integer
	Long
	Float
	Double
	String

	BooleanArray
	ByteArray
	ShortArray
	IntegerArray
	LongArray
	FloatArray
	DoubleArray
	StringArray

	Table

	// Meta-kinds. Only valid as configured types.
	Any
	Scalar
	ScalarArray
)

var names = [...]string{
	None:         "NONE",
	Alias:        "ALIAS",
	Void:         "VOID",
	Boolean:      "BOOLEAN",
	Byte:         "BYTE",
	Short:        "SHORT",
	Integer:      "INTEGER",
	Long:         "LONG",
	Float:        "FLOAT",
	Double:       "DOUBLE",
	String:       "STRING",
	BooleanArray: "BOOLEAN_ARRAY",
	ByteArray:    "BYTE_ARRAY",
	ShortArray:   "SHORT_ARRAY",
	IntegerArray: "INTEGER_ARRAY",
	LongArray:    "LONG_ARRAY",
	FloatArray:   "FLOAT_ARRAY",
	DoubleArray:  "DOUBLE_ARRAY",
	StringArray:  "STRING_ARRAY",
	Table:        "TABLE",
	Any:          "ANY",
	Scalar:       "SCALAR",
	ScalarArray:  "SCALAR_ARRAY",
}

var byName = func() map[string]DataType {
	m := make(map[string]DataType, len(names))
	for i, n := range names {
		m[n] = DataType(i)
	}
	return m
}()

// All returns every data type in declaration order.
func All() []DataType {
	out := make([]DataType, len(names))
	for i := range names {
		out[i] = DataType(i)
	}
	return out
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(names) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return names[t]
}

// Lookup returns the data type with the given name, ignoring case.
// Meta-kinds are accepted.
func Lookup(name string) (DataType, bool) {
	t, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// Parse parses a client-supplied TYPE value. Only concrete types are
// accepted; meta-kinds, NONE and ALIAS are configuration-only.
func Parse(name string) (DataType, error) {
	t, ok := Lookup(name)
	if !ok {
		return None, fmt.Errorf("unknown type %q", name)
	}
	if !t.IsConcrete() {
		return None, fmt.Errorf("%s is a configuration-only type", t)
	}
	return t, nil
}

// IsMeta reports whether t is one of Any, Scalar or ScalarArray.
func (t DataType) IsMeta() bool {
	return t == Any || t == Scalar || t == ScalarArray
}

// IsScalar reports whether t is one of the eight scalar kinds.
func (t DataType) IsScalar() bool {
	return t >= Boolean && t <= String
}

// IsArray reports whether t is one of the eight scalar-array kinds.
func (t DataType) IsArray() bool {
	return t >= BooleanArray && t <= StringArray
}

// MetaType classifies t: scalar kinds map to Scalar, array kinds to
// ScalarArray and everything else, Table included, to Any.
func (t DataType) MetaType() DataType {
	switch {
	case t.IsScalar():
		return Scalar
	case t.IsArray():
		return ScalarArray
	default:
		return Any
	}
}

// IsCompatible reports whether a client-requested type may be used against a
// channel configured with the given type. Table satisfies either scalar
// meta-kind because table shape is validated from the field definitions.
func IsCompatible(requested, configured DataType) bool {
	switch configured {
	case Any:
		return true
	case Scalar, ScalarArray:
		return requested == Table || requested.MetaType() == configured
	default:
		return requested == configured
	}
}

// ArrayOf returns the array kind for a scalar kind, or None.
func ArrayOf(t DataType) DataType {
	if !t.IsScalar() {
		return None
	}
	return t + (BooleanArray - Boolean)
}

// ElementOf returns the scalar kind held by an array kind, or None.
func ElementOf(t DataType) DataType {
	if !t.IsArray() {
		return None
	}
	return t - (BooleanArray - Boolean)
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Used by both the JSON
// and YAML decoders.
func (t *DataType) UnmarshalText(text []byte) error {
	v, ok := Lookup(string(text))
	if !ok {
		return fmt.Errorf("unknown data type %q", string(text))
	}
	*t = v
	return nil
}

// IsConcrete reports whether t can govern a request: Void, Table or a
// scalar or array kind.
func (t DataType) IsConcrete() bool {
	return t == Void || t == Table || t.IsScalar() || t.IsArray()
}
