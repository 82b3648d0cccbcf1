package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode validates and encodes a message to JSON text.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses JSON text into a message and validates it.
func Decode(data []byte) (*Message, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes a JSON object into a message without validating it.
func Parse(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedEnvelope)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &m, nil
}

// PeekType returns the type discriminator without decoding the payload.
func PeekType(data []byte) (MessageType, error) {
	var peek struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return peek.Type, nil
}

// MarshalData encodes an arbitrary payload for the data field.
func MarshalData(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// PeekRequestID returns the requestId of a message that failed to decode
// or validate, or nil when none can be read.
func PeekRequestID(data []byte) *uint64 {
	var peek struct {
		RequestID *uint64 `json:"requestId"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil
	}
	return peek.RequestID
}
