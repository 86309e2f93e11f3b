package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	floatWrapper  = "$float"
	doubleWrapper = "$double"
)

// parseQuery walks the query object member by member, keeping wire order.
func parseQuery(raw json.RawMessage) ([]Argument, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: query must be an object", ErrMalformed)
	}

	var args []Argument
	err := eachMember(raw, func(name string, value json.RawMessage) error {
		if name == "" {
			return fmt.Errorf("%w: query field has no name", ErrMalformed)
		}
		arg, err := canonical(name, value)
		if err != nil {
			return err
		}
		args = append(args, arg)
		return nil
	})
	return args, err
}

// canonical renders one argument value. Top-level strings are taken verbatim;
// everything else is written as compact JSON.
func canonical(name string, raw json.RawMessage) (Argument, error) {
	raw = bytes.TrimSpace(raw)
	arg := Argument{Name: name}

	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return arg, fmt.Errorf("%w: argument %s has no value", ErrMalformed, name)
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &arg.Value); err != nil {
			return arg, fmt.Errorf("%w: argument %s: %v", ErrMalformed, name, err)
		}
		return arg, nil
	}

	w := &walker{arg: &arg}
	if err := w.value(raw, ""); err != nil {
		return arg, fmt.Errorf("%w: argument %s: %v", ErrMalformed, name, err)
	}
	arg.Value = w.buf.String()
	return arg, nil
}

type walker struct {
	buf bytes.Buffer
	arg *Argument
}

func (w *walker) value(raw json.RawMessage, path string) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("empty value at %q", path)
	}
	switch raw[0] {
	case '{':
		if handled, err := w.wrapped(raw, path); handled || err != nil {
			return err
		}
		return w.object(raw, path)
	case '[':
		return w.array(raw, path)
	case '"', 't', 'f', 'n':
		return compactInto(&w.buf, raw)
	default:
		return w.number(raw, path)
	}
}

func (w *walker) object(raw json.RawMessage, path string) error {
	w.buf.WriteByte('{')
	first := true
	err := eachMember(raw, func(key string, value json.RawMessage) error {
		if !first {
			w.buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(key)
		if err != nil {
			return err
		}
		w.buf.Write(kb)
		w.buf.WriteByte(':')
		return w.value(value, path+"."+key)
	})
	if err != nil {
		return err
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *walker) array(raw json.RawMessage, path string) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	w.buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.value(item, path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	w.buf.WriteByte(']')
	return nil
}

// number records non-integer literals on the double side channel.
func (w *walker) number(raw json.RawMessage, path string) error {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	lit := n.String()
	if strings.ContainsAny(lit, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return err
		}
		w.arg.Doubles = append(w.arg.Doubles, DoubleValue{Path: path, Value: f})
	}
	w.buf.WriteString(lit)
	return nil
}

// wrapped handles {"$float": n} and {"$double": n} leaves, rendering the
// bare number and recording it with the requested precision.
func (w *walker) wrapped(raw json.RawMessage, path string) (bool, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || len(m) != 1 {
		return false, nil
	}
	for key, inner := range m {
		if key != floatWrapper && key != doubleWrapper {
			return false, nil
		}
		var n json.Number
		if err := json.Unmarshal(inner, &n); err != nil {
			return true, fmt.Errorf("%s at %q must be a number", key, path)
		}
		if key == floatWrapper {
			f, err := strconv.ParseFloat(n.String(), 32)
			if err != nil {
				return true, err
			}
			w.arg.Floats = append(w.arg.Floats, FloatValue{Path: path, Value: float32(f)})
		} else {
			f, err := n.Float64()
			if err != nil {
				return true, err
			}
			w.arg.Doubles = append(w.arg.Doubles, DoubleValue{Path: path, Value: f})
		}
		w.buf.WriteString(n.String())
	}
	return true, nil
}

// eachMember calls fn for every member of a JSON object in wire order.
func eachMember(raw json.RawMessage, fn func(string, json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func compactInto(buf *bytes.Buffer, raw json.RawMessage) error {
	return json.Compact(buf, raw)
}
