// Package envelope shapes raw provider results into typed response envelopes.
package envelope

import (
	"fmt"
	"reflect"

	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/types"
)

const logPrefix = "envelope:envelope"

// Kind is the shape of a response.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindArray  Kind = "array"
	KindTable  Kind = "table"
	KindVoid   Kind = "void"
)

// Response is a typed result envelope.
type Response struct {
	Kind  Kind           `json:"kind"`
	Type  types.DataType `json:"type"`
	Value any            `json:"value,omitempty"`
	Table *Table         `json:"table,omitempty"`
}

// Column is one labeled, homogeneous column of a table.
type Column struct {
	Label  string         `json:"label"`
	Name   string         `json:"name"`
	Type   types.DataType `json:"type"`
	Values any            `json:"values"`
}

// Table is a rectangular column-major result.
type Table struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// Labels returns the column labels in order.
func (t *Table) Labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// Scalar builds a scalar envelope, converting v to the Go representation of t.
func Scalar(t types.DataType, v any) (*Response, error) {
	value, err := types.Coerce(t, v)
	if err != nil {
		return nil, fmt.Errorf("%s - scalar %s: %w", logPrefix, t, err)
	}
	return &Response{Kind: KindScalar, Type: t, Value: value}, nil
}

// Array builds an array envelope, converting v to a typed slice for t.
func Array(t types.DataType, v any) (*Response, error) {
	values, err := types.CoerceSlice(t, v)
	if err != nil {
		return nil, fmt.Errorf("%s - array %s: %w", logPrefix, t, err)
	}
	return &Response{Kind: KindArray, Type: t, Value: values}, nil
}

// Void builds the envelope for a set with no result.
func Void() *Response {
	return &Response{Kind: KindVoid, Type: types.Void}
}

// Empty is the scalar envelope with no value.
func Empty() *Response {
	return &Response{Kind: KindScalar, Type: types.None}
}

// NewTable builds a table envelope. Columns map to fields by position and
// each column's kind is inferred from its values.
func NewTable(fields []registry.FieldSpec, columns []any) (*Response, error) {
	if len(columns) != len(fields) {
		return nil, fmt.Errorf("%s - table has %d columns, channel defines %d fields", logPrefix, len(columns), len(fields))
	}

	table := &Table{Columns: make([]Column, len(fields))}
	for i, f := range fields {
		kind, err := columnKind(columns[i])
		if err != nil {
			return nil, fmt.Errorf("%s - column %s: %w", logPrefix, f.Name, err)
		}
		values, err := types.CoerceSlice(types.ArrayOf(kind), columns[i])
		if err != nil {
			return nil, fmt.Errorf("%s - column %s: %w", logPrefix, f.Name, err)
		}
		n := reflect.ValueOf(values).Len()
		if i == 0 {
			table.Rows = n
		} else if n != table.Rows {
			return nil, fmt.Errorf("%s - column %s has %d rows, want %d", logPrefix, f.Name, n, table.Rows)
		}
		table.Columns[i] = Column{Label: f.ColumnLabel(), Name: f.Name, Type: kind, Values: values}
	}
	return &Response{Kind: KindTable, Type: types.Table, Table: table}, nil
}

// columnKind infers a scalar kind from a typed slice or from the first
// non-nil element of an untyped one. Empty columns are strings.
func columnKind(column any) (types.DataType, error) {
	if column == nil {
		return types.String, nil
	}
	rv := reflect.ValueOf(column)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return types.None, fmt.Errorf("expected a sequence, got %T", column)
	}
	for _, k := range []types.DataType{types.Boolean, types.Byte, types.Short, types.Integer, types.Long, types.Float, types.Double, types.String} {
		if gt, _ := types.GoType(k); rv.Type().Elem() == gt {
			return k, nil
		}
	}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if item == nil {
			continue
		}
		if k, ok := types.KindOf(item); ok {
			return k, nil
		}
		return normalizeKind(item)
	}
	return types.String, nil
}

func normalizeKind(v any) (types.DataType, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt(), rv.CanUint():
		return types.Long, nil
	case rv.CanFloat():
		return types.Double, nil
	}
	return types.None, fmt.Errorf("unsupported column value %T", v)
}
