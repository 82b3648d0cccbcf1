package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// LocalRole is the side that wrote the event.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address, when the port has one.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Channel is set for events tied to one channel.
	Channel string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/subscription state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the port layer (raw messages).
	LayerTransport Layer = 0
	// LayerWire is the envelope layer (decoded JSON).
	LayerWire Layer = 1
	// LayerClient is the subscription and request layer.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a control envelope or data push.
	CategoryMessage Category = 0
	// CategoryDelta indicates a binary delta frame.
	CategoryDelta Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDelta:
		return "DELTA"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the protocol wrote the event.
type Role uint8

const (
	// RoleConsumer is a subscribing client.
	RoleConsumer Role = 0
	// RoleProducer is the upstream hub.
	RoleProducer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleConsumer:
		return "CONSUMER"
	case RoleProducer:
		return "PRODUCER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one port message at the transport layer.
type FrameEvent struct {
	// Size is the message size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw message (may be truncated for large messages).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Binary is true for delta frames, false for JSON text.
	Binary bool `cbor:"4,keyasint,omitempty"`
}

// MessageEvent captures a decoded control envelope at the wire layer.
type MessageEvent struct {
	// Type is the envelope discriminator ("subscribe", "data", ...).
	Type string `cbor:"1,keyasint"`

	// RequestID is nil for unsolicited pushes.
	RequestID *uint64 `cbor:"2,keyasint,omitempty"`

	FPS int `cbor:"3,keyasint,omitempty"`

	// DataSize is the length of the raw data payload.
	DataSize int `cbor:"4,keyasint,omitempty"`

	// Error carries the producer's error string on failed replies.
	Error string `cbor:"5,keyasint,omitempty"`

	// Latency is the time from request to correlated reply (replies only).
	Latency *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures connection and subscription lifecycle events.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySubscription indicates a channel subscription change.
	StateEntitySubscription StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Kind is a short classification such as "protocol" or "timeout".
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// Error kinds.
const (
	ErrorKindProtocol  = "protocol"
	ErrorKindTruncated = "truncated"
	ErrorKindTimeout   = "timeout"
	ErrorKindTransport = "transport"
	ErrorKindCallback  = "callback"
	ErrorKindEnvelope  = "envelope"
)

// MaxFrameDataSize is the largest message body copied into a FrameEvent.
const MaxFrameDataSize = 4096

// NewFrameEvent builds a transport layer event for a raw message,
// truncating the copied data to MaxFrameDataSize.
func NewFrameEvent(connID string, dir Direction, binary bool, data []byte) Event {
	frameData := data
	truncated := false
	if len(data) > MaxFrameDataSize {
		frameData = data[:MaxFrameDataSize]
		truncated = true
	}

	category := CategoryMessage
	if binary {
		category = CategoryDelta
	}

	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerTransport,
		Category:     category,
		Frame: &FrameEvent{
			Size:      len(data),
			Data:      append([]byte(nil), frameData...),
			Truncated: truncated,
			Binary:    binary,
		},
	}
}

// NewStateEvent builds a state change event.
func NewStateEvent(connID string, entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        LayerClient,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(connID string, layer Layer, kind string, err error, context string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        layer,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Kind:    kind,
			Context: context,
		},
	}
}
