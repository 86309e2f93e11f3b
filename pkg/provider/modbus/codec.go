package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/morezero/channel-gateway/pkg/types"
)

// wordsFor returns the number of 16-bit registers that hold one value of t.
func wordsFor(t types.DataType) (uint16, error) {
	switch t {
	case types.Boolean, types.Byte, types.Short:
		return 1, nil
	case types.Integer, types.Float:
		return 2, nil
	case types.Long, types.Double:
		return 4, nil
	}
	return 0, fmt.Errorf("type %s has no register encoding", t)
}

// reorder rearranges a big-endian value according to order. For 64-bit
// values the 32-bit pattern is applied to each half.
func reorder(in []byte, order string) []byte {
	out := append([]byte(nil), in...)
	for off := 0; off+4 <= len(out); off += 4 {
		b := in[off : off+4]
		switch strings.ToUpper(strings.TrimSpace(order)) {
		case "DCBA":
			out[off], out[off+1], out[off+2], out[off+3] = b[3], b[2], b[1], b[0]
		case "BADC":
			out[off], out[off+1], out[off+2], out[off+3] = b[1], b[0], b[3], b[2]
		case "CDAB":
			out[off], out[off+1], out[off+2], out[off+3] = b[2], b[3], b[0], b[1]
		}
	}
	return out
}

// decode converts register bytes into the Go value for t.
func decode(t types.DataType, data []byte, order string) (any, error) {
	words, err := wordsFor(t)
	if err != nil {
		return nil, err
	}
	if len(data) < int(words)*2 {
		return nil, fmt.Errorf("insufficient data for %s: %d bytes", t, len(data))
	}
	data = data[:words*2]
	if words > 1 {
		data = reorder(data, order)
	}

	switch t {
	case types.Boolean:
		return binary.BigEndian.Uint16(data) != 0, nil
	case types.Byte:
		v := int16(binary.BigEndian.Uint16(data))
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, fmt.Errorf("register value %d overflows %s", v, t)
		}
		return int8(v), nil
	case types.Short:
		return int16(binary.BigEndian.Uint16(data)), nil
	case types.Integer:
		return int32(binary.BigEndian.Uint32(data)), nil
	case types.Float:
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
	case types.Long:
		return int64(binary.BigEndian.Uint64(data)), nil
	default:
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	}
}

// encode is the inverse of decode.
func encode(t types.DataType, v any, order string) ([]byte, error) {
	typed, err := types.Coerce(t, v)
	if err != nil {
		return nil, err
	}
	var out []byte
	switch x := typed.(type) {
	case bool:
		var w uint16
		if x {
			w = 1
		}
		out = binary.BigEndian.AppendUint16(nil, w)
	case int8:
		out = binary.BigEndian.AppendUint16(nil, uint16(int16(x)))
	case int16:
		out = binary.BigEndian.AppendUint16(nil, uint16(x))
	case int32:
		out = binary.BigEndian.AppendUint32(nil, uint32(x))
	case float32:
		out = binary.BigEndian.AppendUint32(nil, math.Float32bits(x))
	case int64:
		out = binary.BigEndian.AppendUint64(nil, uint64(x))
	case float64:
		out = binary.BigEndian.AppendUint64(nil, math.Float64bits(x))
	default:
		return nil, fmt.Errorf("type %s has no register encoding", t)
	}
	if len(out) > 2 {
		out = reorder(out, order)
	}
	return out, nil
}
