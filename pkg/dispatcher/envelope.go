// Package dispatcher negotiates, validates and routes channel requests to the
// native operation layer.
package dispatcher

import "github.com/morezero/channel-gateway/pkg/envelope"

// Response is the JSON envelope returned to transport callers.
type Response struct {
	ID     string             `json:"id"`
	Ok     bool               `json:"ok"`
	Result *envelope.Response `json:"result,omitempty"`
	Error  *ErrorDetail       `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// ErrorResponse builds a failed Response. Nothing is retried, so Retryable
// is always false.
func ErrorResponse(id string, err *Error) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:    string(err.Kind),
			Message: err.Message,
			Details: err.Details,
		},
	}
}
