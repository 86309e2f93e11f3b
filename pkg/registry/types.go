// Package registry holds the channel configuration snapshot and resolves
// channel names to their getter and setter configurations.
package registry

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/morezero/channel-gateway/pkg/types"
)

// FieldSpec describes one column of a table-shaped result.
type FieldSpec struct {
	Name        string `json:"name" yaml:"name"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Units       string `json:"units,omitempty" yaml:"units,omitempty"`
}

// ColumnLabel returns the label used for the field's column, falling back to
// the field name.
func (f FieldSpec) ColumnLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// OperationConfig is the immutable descriptor for one direction (get or set)
// of a channel.
type OperationConfig struct {
	Type   types.DataType
	Fields []FieldSpec

	arguments []string
	allowed   map[string]struct{}
}

// NewOperationConfig builds an OperationConfig. Argument names are uppercased
// and de-duplicated; fields are copied.
func NewOperationConfig(t types.DataType, fields []FieldSpec, arguments []string) *OperationConfig {
	c := &OperationConfig{
		Type:    t,
		Fields:  append([]FieldSpec(nil), fields...),
		allowed: make(map[string]struct{}, len(arguments)),
	}
	for _, a := range arguments {
		name := strings.ToUpper(strings.TrimSpace(a))
		if name == "" {
			continue
		}
		if _, dup := c.allowed[name]; dup {
			continue
		}
		c.allowed[name] = struct{}{}
		c.arguments = append(c.arguments, name)
	}
	return c
}

// Allows reports whether the named argument is accepted, ignoring case.
func (c *OperationConfig) Allows(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.allowed[strings.ToUpper(name)]
	return ok
}

// Arguments returns the allowed argument names, sorted.
func (c *OperationConfig) Arguments() []string {
	if c == nil {
		return nil
	}
	out := append([]string(nil), c.arguments...)
	sort.Strings(out)
	return out
}

type operationConfigJSON struct {
	Type      types.DataType `json:"type"`
	Fields    []FieldSpec    `json:"fields,omitempty"`
	Arguments []string       `json:"arguments"`
}

// MarshalJSON renders the config for introspection responses.
func (c *OperationConfig) MarshalJSON() ([]byte, error) {
	args := c.Arguments()
	if args == nil {
		args = []string{}
	}
	return json.Marshal(operationConfigJSON{Type: c.Type, Fields: c.Fields, Arguments: args})
}

// UnmarshalJSON is the inverse of MarshalJSON; used by the database store.
func (c *OperationConfig) UnmarshalJSON(data []byte) error {
	var raw operationConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = *NewOperationConfig(raw.Type, raw.Fields, raw.Arguments)
	return nil
}

// TypeOf returns the configured type, or types.None when the direction is
// not configured.
func TypeOf(c *OperationConfig) types.DataType {
	if c == nil {
		return types.None
	}
	return c.Type
}

// Channel is a named or wildcard-matched endpoint. A nil Getter or Setter
// means the direction is unsupported.
type Channel struct {
	Name   string           `json:"channel"`
	Getter *OperationConfig `json:"getterConfig,omitempty"`
	Setter *OperationConfig `json:"setterConfig,omitempty"`
}

// ListInput holds parameters for the list method.
type ListInput struct {
	Query string `json:"query,omitempty"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ListOutput holds the result of the list method.
type ListOutput struct {
	Channels   []ChannelSummary `json:"channels"`
	Pagination Pagination       `json:"pagination"`
}

// ChannelSummary is one entry of a channel listing.
type ChannelSummary struct {
	Channel    string         `json:"channel"`
	Wildcard   bool           `json:"wildcard"`
	GetterType types.DataType `json:"getterType"`
	SetterType types.DataType `json:"setterType"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DescribeOutput holds the resolved configuration for a channel name.
type DescribeOutput struct {
	Channel   string           `json:"channel"`
	MatchedBy string           `json:"matchedBy"`
	Getter    *OperationConfig `json:"getterConfig,omitempty"`
	Setter    *OperationConfig `json:"setterConfig,omitempty"`
}

// HealthOutput holds the result of the health method.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Channels  int          `json:"channels"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks holds individual health check results.
type HealthChecks struct {
	Channels bool `json:"channels"`
	COMMS    bool `json:"comms,omitempty"`
}

// RegistryError is a structured error from the registry.
type RegistryError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *RegistryError) Error() string {
	return e.Code + ": " + e.Message
}

// NewRegistryError creates a new RegistryError.
func NewRegistryError(code, message string) *RegistryError {
	return &RegistryError{Code: code, Message: message}
}
