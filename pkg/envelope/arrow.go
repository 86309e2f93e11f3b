package envelope

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/morezero/channel-gateway/pkg/types"
)

// ArrowStreamMediaType is the content type of an Arrow IPC stream.
const ArrowStreamMediaType = "application/vnd.apache.arrow.stream"

// ArrowType maps a scalar kind to its Arrow type.
func ArrowType(t types.DataType) (arrow.DataType, bool) {
	switch t {
	case types.Boolean:
		return arrow.FixedWidthTypes.Boolean, true
	case types.Byte:
		return arrow.PrimitiveTypes.Int8, true
	case types.Short:
		return arrow.PrimitiveTypes.Int16, true
	case types.Integer:
		return arrow.PrimitiveTypes.Int32, true
	case types.Long:
		return arrow.PrimitiveTypes.Int64, true
	case types.Float:
		return arrow.PrimitiveTypes.Float32, true
	case types.Double:
		return arrow.PrimitiveTypes.Float64, true
	case types.String:
		return arrow.BinaryTypes.String, true
	}
	return nil, false
}

// Schema returns the Arrow schema of the table. Field names are the column
// labels; the underlying field name is kept as metadata.
func (t *Table) Schema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		dt, ok := ArrowType(c.Type)
		if !ok {
			return nil, fmt.Errorf("%s - column %s: no arrow type for %s", logPrefix, c.Label, c.Type)
		}
		fields[i] = arrow.Field{
			Name:     c.Label,
			Type:     dt,
			Metadata: arrow.NewMetadata([]string{"name"}, []string{c.Name}),
		}
	}
	return arrow.NewSchema(fields, nil), nil
}

// Record converts the table into an Arrow record. The caller releases it.
func (t *Table) Record(mem memory.Allocator) (arrow.Record, error) {
	schema, err := t.Schema()
	if err != nil {
		return nil, err
	}

	cols := make([]arrow.Array, 0, len(t.Columns))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for _, c := range t.Columns {
		arr, err := buildColumn(mem, c)
		if err != nil {
			return nil, err
		}
		cols = append(cols, arr)
	}
	return array.NewRecord(schema, cols, int64(t.Rows)), nil
}

// WriteIPC writes the table as a single-batch Arrow IPC stream.
func (t *Table) WriteIPC(w io.Writer) error {
	mem := memory.NewGoAllocator()
	rec, err := t.Record(mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("%s - write record: %w", logPrefix, err)
	}
	return writer.Close()
}

func buildColumn(mem memory.Allocator, c Column) (arrow.Array, error) {
	switch vals := c.Values.(type) {
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []int8:
		b := array.NewInt8Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []int16:
		b := array.NewInt16Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray(), nil
	}
	return nil, fmt.Errorf("%s - column %s: unsupported values %T", logPrefix, c.Label, c.Values)
}
