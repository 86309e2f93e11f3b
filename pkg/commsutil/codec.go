package commsutil

import (
	"encoding/json"
	"errors"
	"fmt"
)

const codecLogPrefix = "commsutil:codec"

// ErrEmptyPayload is returned by DecodePayload for a message with no body.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a request, reply or event body to JSON.
func EncodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - encode %T: %w", codecLogPrefix, v, err)
	}
	return data, nil
}

// DecodePayload deserializes a JSON message body into v. An empty body is
// ErrEmptyPayload rather than a syntax error.
func DecodePayload(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s - decode into %T: %w", codecLogPrefix, v, err)
	}
	return nil
}
