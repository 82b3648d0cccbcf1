package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope errors.
var (
	// ErrMalformedEnvelope indicates a text message that is not a valid envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrUnknownType indicates an envelope with an unrecognized type.
	ErrUnknownType = errors.New("unknown message type")
)

// MessageType is the discriminator of a control envelope.
type MessageType string

// Consumer to producer.
const (
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePublish     MessageType = "publish"
	TypeGet         MessageType = "get"
	TypeInspect     MessageType = "inspect"
)

// Producer to consumer.
const (
	// TypeData carries channel data, either as a push or as a get response.
	TypeData MessageType = "data"

	// TypeConfig carries the full RegisterConfig array of a channel.
	TypeConfig MessageType = "config"

	// Acknowledgements. Consumers accept and ignore them.
	TypeSubscribed   MessageType = "subscribed"
	TypeUnsubscribed MessageType = "unsubscribed"
	TypePublished    MessageType = "published"
	TypeError        MessageType = "error"
)

// IsValid reports whether t is a known message type.
// The empty type is valid: bare responses may carry only requestId and data.
func (t MessageType) IsValid() bool {
	switch t {
	case "", TypeSubscribe, TypeUnsubscribe, TypePublish, TypeGet, TypeInspect,
		TypeData, TypeConfig, TypeSubscribed, TypeUnsubscribed, TypePublished, TypeError:
		return true
	}
	return false
}

// IsPush reports whether messages of this type are delivered to channel subscribers.
func (t MessageType) IsPush() bool {
	return t == TypeData || t == TypeConfig
}

// String returns the wire name of the type.
func (t MessageType) String() string {
	if t == "" {
		return "response"
	}
	return string(t)
}

// Message is the control envelope. Which fields are meaningful depends on Type.
type Message struct {
	Type      MessageType     `json:"type,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	FPS       int             `json:"fps,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *uint64         `json:"requestId,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// HasRequestID reports whether the message carries a request ID.
func (m *Message) HasRequestID() bool {
	return m.RequestID != nil
}

// ID returns the request ID, or 0 when absent.
func (m *Message) ID() uint64 {
	if m.RequestID == nil {
		return 0
	}
	return *m.RequestID
}

// WithRequestID returns a copy of m stamped with id.
func (m Message) WithRequestID(id uint64) Message {
	m.RequestID = &id
	return m
}

// Validate checks the fields required by the message type.
func (m *Message) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, string(m.Type))
	}
	switch m.Type {
	case TypeSubscribe, TypeUnsubscribe, TypeGet:
		if m.Channel == "" {
			return fmt.Errorf("%w: %s without channel", ErrMalformedEnvelope, m.Type)
		}
	case TypePublish:
		if m.Channel == "" {
			return fmt.Errorf("%w: publish without channel", ErrMalformedEnvelope)
		}
	case TypeInspect:
		if !m.HasRequestID() {
			return fmt.Errorf("%w: inspect without requestId", ErrMalformedEnvelope)
		}
	}
	if m.FPS < 0 {
		return fmt.Errorf("%w: negative fps %d", ErrMalformedEnvelope, m.FPS)
	}
	return nil
}

// Subscribe builds a subscribe envelope. fps <= 0 lets the producer pick its default rate.
func Subscribe(channel string, fps int) Message {
	if fps < 0 {
		fps = 0
	}
	return Message{Type: TypeSubscribe, Channel: channel, FPS: fps}
}

// Unsubscribe builds an unsubscribe envelope.
func Unsubscribe(channel string) Message {
	return Message{Type: TypeUnsubscribe, Channel: channel}
}

// Publish builds a publish envelope.
func Publish(channel string, data json.RawMessage) Message {
	return Message{Type: TypePublish, Channel: channel, Data: data}
}

// Get builds a get envelope.
func Get(channel string) Message {
	return Message{Type: TypeGet, Channel: channel}
}

// Inspect builds an inspect envelope.
func Inspect() Message {
	return Message{Type: TypeInspect}
}

// Push builds an unsolicited push of data or config to a channel.
func Push(t MessageType, channel string, data json.RawMessage) Message {
	return Message{Type: t, Channel: channel, Data: data}
}

// Reply builds a response to the request with the given ID.
func Reply(t MessageType, requestID uint64, data json.RawMessage) Message {
	return Message{Type: t, RequestID: &requestID, Data: data}
}

// ReplyError builds an error response to the request with the given ID.
func ReplyError(requestID uint64, msg string) Message {
	return Message{Type: TypeError, RequestID: &requestID, Error: msg}
}
