// Package provider defines the native operation layer the dispatcher routes
// validated requests to.
package provider

import (
	"context"
	"errors"

	"github.com/morezero/channel-gateway/pkg/request"
	"github.com/morezero/channel-gateway/pkg/types"
)

// ErrUnsupportedChannel is returned when a provider has no implementation for
// a channel in the requested shape.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Table is a raw column-major result. Each column is a slice (typed or
// []any); all columns have the same length.
type Table struct {
	Columns []any
}

// NewTable builds a Table from columns.
func NewTable(columns ...any) *Table {
	return &Table{Columns: columns}
}

// Provider is the native operation layer. Implementations are not required
// to be safe for concurrent use; the dispatcher serializes every call.
// Channel names passed in are already canonicalized.
type Provider interface {
	// GetScalar returns a single value of kind t.
	GetScalar(ctx context.Context, channel string, args []request.Argument, t types.DataType) (any, error)
	// GetArray returns a sequence of values of the element kind of t.
	GetArray(ctx context.Context, channel string, args []request.Argument, t types.DataType) (any, error)
	GetTable(ctx context.Context, channel string, args []request.Argument) (*Table, error)
	SetVoid(ctx context.Context, channel string, args []request.Argument) error
	SetTable(ctx context.Context, channel string, args []request.Argument) (*Table, error)
}
