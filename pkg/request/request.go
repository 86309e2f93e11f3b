// Package request decodes URI-shaped request envelopes into a channel name
// and an ordered argument list.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const logPrefix = "request:request"

const (
	// TypeIDPrefix is the type discriminator every envelope must carry.
	TypeIDPrefix = "epics:nt/NTURI:"
	// DefaultTypeID is used when building envelopes locally.
	DefaultTypeID = TypeIDPrefix + "1.0"
	// DefaultScheme is the scheme written into locally built envelopes.
	DefaultScheme = "pva"

	// ArgType selects the effective data type of a request.
	ArgType = "TYPE"
	// ArgValue carries the value of a set request.
	ArgValue = "VALUE"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed request")

// Envelope is the JSON form of a URI request.
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Scheme string          `json:"scheme,omitempty"`
	Path   string          `json:"path"`
	Query  json.RawMessage `json:"query,omitempty"`
}

// FloatValue is a single-precision number found at Path inside an argument.
type FloatValue struct {
	Path  string  `json:"path"`
	Value float32 `json:"value"`
}

// DoubleValue is a double-precision number found at Path inside an argument.
type DoubleValue struct {
	Path  string  `json:"path"`
	Value float64 `json:"value"`
}

// Argument is one named query field. Value is the canonical string form;
// Floats and Doubles keep embedded floating point numbers at full precision.
type Argument struct {
	Name    string        `json:"name"`
	Value   string        `json:"value"`
	Floats  []FloatValue  `json:"floats,omitempty"`
	Doubles []DoubleValue `json:"doubles,omitempty"`
}

// Is reports whether the argument has the given name, ignoring case.
func (a Argument) Is(name string) bool {
	return strings.EqualFold(a.Name, name)
}

// Number returns the argument as a float64. A side-channel entry at the top
// level wins over the string form.
func (a Argument) Number() (float64, error) {
	for _, d := range a.Doubles {
		if d.Path == "" {
			return d.Value, nil
		}
	}
	for _, f := range a.Floats {
		if f.Path == "" {
			return float64(f.Value), nil
		}
	}
	return strconv.ParseFloat(a.Value, 64)
}

// Request is a parsed envelope.
type Request struct {
	ID        string
	Channel   string
	Arguments []Argument
}

// Argument returns the first argument with the given name, ignoring case.
func (r *Request) Argument(name string) (Argument, bool) {
	for _, a := range r.Arguments {
		if a.Is(name) {
			return a, true
		}
	}
	return Argument{}, false
}

// Decode parses JSON bytes into a Request.
func Decode(data []byte) (*Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Parse(&env)
}

// Parse validates an envelope and extracts the channel name and arguments.
// A missing ID is replaced with a generated one.
func Parse(env *Envelope) (*Request, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	if !strings.HasPrefix(env.Type, TypeIDPrefix) {
		return nil, fmt.Errorf("%w: expected type %s*, got %q", ErrMalformed, TypeIDPrefix, env.Type)
	}
	if env.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrMalformed)
	}

	args, err := parseQuery(env.Query)
	if err != nil {
		return nil, err
	}

	id := env.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Request{ID: id, Channel: env.Path, Arguments: args}, nil
}

// FromValues builds an envelope from URL query values. Keys are sorted and
// only the first value of each key is used.
func FromValues(path string, values url.Values) (*Envelope, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%s - encode key %q: %w", logPrefix, k, err)
		}
		vb, err := json.Marshal(values.Get(k))
		if err != nil {
			return nil, fmt.Errorf("%s - encode value for %q: %w", logPrefix, k, err)
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')

	return &Envelope{
		Type:   DefaultTypeID,
		Scheme: DefaultScheme,
		Path:   path,
		Query:  json.RawMessage(b.String()),
	}, nil
}
