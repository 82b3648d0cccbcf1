package subscription

import (
	"encoding/json"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Payload is what a callback receives: either a binary delta frame or a
// JSON push for one channel.
type Payload struct {
	// Type is TypeData or TypeConfig for JSON pushes, empty for frames.
	Type    wire.MessageType
	Channel string
	Data    json.RawMessage

	// Binary is set for delta frames, whose bytes are in Frame.
	Binary bool
	Frame  []byte
}

// FramePayload wraps a binary frame.
func FramePayload(frame []byte) Payload {
	return Payload{Binary: true, Frame: frame}
}

// PushPayload wraps a JSON push envelope.
func PushPayload(m *wire.Message) Payload {
	return Payload{Type: m.Type, Channel: m.Channel, Data: m.Data}
}

// IsBinary reports whether p carries a delta frame.
func (p Payload) IsBinary() bool {
	return p.Binary
}

// Bytes returns the delta frame.
func (p Payload) Bytes() []byte {
	return p.Frame
}

// MessageType returns the push type.
func (p Payload) MessageType() wire.MessageType {
	return p.Type
}

// JSON returns the push data.
func (p Payload) JSON() json.RawMessage {
	return p.Data
}

// Decode unmarshals the push data into v.
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p.Data, v)
}
