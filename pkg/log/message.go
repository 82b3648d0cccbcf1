package log

import (
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// NewMessageEvent builds a wire layer event for a decoded envelope.
func NewMessageEvent(connID string, dir Direction, m *wire.Message) Event {
	msg := &MessageEvent{
		Type:     string(m.Type),
		FPS:      m.FPS,
		DataSize: len(m.Data),
		Error:    m.Error,
	}
	if m.RequestID != nil {
		id := *m.RequestID
		msg.RequestID = &id
	}

	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Channel:      m.Channel,
		Message:      msg,
	}
}
