package dispatcher

import (
	"errors"
	"fmt"
)

// Kind identifies a class of request failure.
type Kind string

const (
	KindMalformedRequest       Kind = "MALFORMED_REQUEST"
	KindUnsupportedOperation   Kind = "UNSUPPORTED_OPERATION"
	KindMissingTypeArgument    Kind = "MISSING_TYPE_ARGUMENT"
	KindInvalidTypeArgument    Kind = "INVALID_TYPE_ARGUMENT"
	KindIncompatibleType       Kind = "INCOMPATIBLE_TYPE"
	KindUnknownArgument        Kind = "UNKNOWN_ARGUMENT"
	KindMisconfiguredChannel   Kind = "MISCONFIGURED_CHANNEL"
	KindNativeOperationFailure Kind = "NATIVE_OPERATION_FAILURE"
	KindInternal               Kind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrMalformedRequest       = &Error{Kind: KindMalformedRequest}
	ErrUnsupportedOperation   = &Error{Kind: KindUnsupportedOperation}
	ErrMissingTypeArgument    = &Error{Kind: KindMissingTypeArgument}
	ErrInvalidTypeArgument    = &Error{Kind: KindInvalidTypeArgument}
	ErrIncompatibleType       = &Error{Kind: KindIncompatibleType}
	ErrUnknownArgument        = &Error{Kind: KindUnknownArgument}
	ErrMisconfiguredChannel   = &Error{Kind: KindMisconfiguredChannel}
	ErrNativeOperationFailure = &Error{Kind: KindNativeOperationFailure}
	ErrInternal               = &Error{Kind: KindInternal}
)

// Error is a classified request failure.
type Error struct {
	Kind    Kind        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsClientError reports whether the kind describes a bad request rather than
// a deployment or native-layer fault.
func (k Kind) IsClientError() bool {
	switch k {
	case KindMisconfiguredChannel, KindNativeOperationFailure, KindInternal:
		return false
	}
	return true
}

func newError(kind Kind, details interface{}, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Details: details}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError classifies err, wrapping unclassified errors with the given kind.
func AsError(err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Message: err.Error(), cause: err}
}
