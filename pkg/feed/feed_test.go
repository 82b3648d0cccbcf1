package feed

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubBroker struct {
	mock.Mock

	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func (b *stubBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	args := b.Called(topic, qos)
	if args.Error(0) == nil {
		b.mu.Lock()
		if b.handlers == nil {
			b.handlers = make(map[string]mqtt.MessageHandler)
		}
		b.handlers[topic] = handler
		b.mu.Unlock()
	}
	return args.Error(0)
}

func (b *stubBroker) Unsubscribe(topics ...string) error {
	return b.Called(topics).Error(0)
}

// deliver hands a message to the handler subscribed for filter.
func (b *stubBroker) deliver(t *testing.T, filter, topic string, payload []byte) {
	t.Helper()
	b.mu.Lock()
	h, ok := b.handlers[filter]
	b.mu.Unlock()
	require.True(t, ok, "no subscription for %q", filter)
	h(nil, stubMessage{topic: topic, payload: payload})
}

type stubMessage struct {
	topic   string
	payload []byte
}

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 0 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return m.topic }
func (m stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte   { return m.payload }
func (m stubMessage) Ack()              {}

var _ mqtt.Message = stubMessage{}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string]json.RawMessage
}

func (p *recordingPublisher) Publish(channel string, data json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.msgs == nil {
		p.msgs = make(map[string]json.RawMessage)
	}
	p.msgs[channel] = data
}

func (p *recordingPublisher) get(channel string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.msgs[channel])
}

func TestFeedRoutesMessages(t *testing.T) {
	broker := &stubBroker{}
	broker.On("Subscribe", "plant/+/temp", byte(1)).Return(nil)
	broker.On("Subscribe", "plant/status", byte(0)).Return(nil)
	broker.On("Unsubscribe", []string{"plant/+/temp", "plant/status"}).Return(nil)

	pub := &recordingPublisher{}
	f, err := New(broker, pub, []Route{
		{Topic: "plant/+/temp", Prefix: "mqtt/", QoS: 1},
		{Topic: "plant/status", Channel: "status"},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, f.Start())

	broker.deliver(t, "plant/+/temp", "plant/boiler/temp", []byte(`{"c":71.5}`))
	broker.deliver(t, "plant/status", "plant/status", []byte("running"))

	assert.JSONEq(t, `{"c":71.5}`, pub.get("mqtt/plant/boiler/temp"))
	assert.Equal(t, `"running"`, pub.get("status"))
	assert.Equal(t, Stats{Received: 2, Published: 2, Wrapped: 1}, f.Stats())

	require.NoError(t, f.Stop())
	assert.ErrorIs(t, f.Stop(), ErrNotStarted)
	broker.AssertExpectations(t)
}

func TestFeedStartRollsBack(t *testing.T) {
	broker := &stubBroker{}
	broker.On("Subscribe", "a", byte(0)).Return(nil)
	broker.On("Subscribe", "b", byte(0)).Return(errors.New("not authorized"))
	broker.On("Unsubscribe", []string{"a"}).Return(nil)

	f, err := New(broker, &recordingPublisher{}, []Route{{Topic: "a"}, {Topic: "b"}}, nil)
	require.NoError(t, err)

	err = f.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
	broker.AssertExpectations(t)

	assert.ErrorIs(t, f.Stop(), ErrNotStarted)
}

func TestFeedStartTwice(t *testing.T) {
	broker := &stubBroker{}
	broker.On("Subscribe", "a", byte(0)).Return(nil).Once()

	f, err := New(broker, &recordingPublisher{}, []Route{{Topic: "a"}}, nil)
	require.NoError(t, err)
	require.NoError(t, f.Start())
	assert.ErrorIs(t, f.Start(), ErrAlreadyRunning)
}

func TestNewValidatesRoutes(t *testing.T) {
	_, err := New(&stubBroker{}, &recordingPublisher{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoRoutes)

	_, err = New(&stubBroker{}, &recordingPublisher{}, []Route{{Topic: ""}}, nil)
	assert.ErrorIs(t, err, ErrEmptyTopic)

	_, err = New(&stubBroker{}, &recordingPublisher{}, []Route{{Topic: "x", QoS: 3}}, nil)
	assert.ErrorIs(t, err, ErrInvalidQoS)
}

func TestPayloadJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wrapped bool
	}{
		{`42`, `42`, false},
		{`{"a":[1,2]}`, `{"a":[1,2]}`, false},
		{`on`, `"on"`, true},
		{``, `""`, true},
		{"line\nbreak", `"line\nbreak"`, true},
	}
	for _, tt := range tests {
		got, wrapped := payloadJSON([]byte(tt.in))
		if string(got) != tt.want || wrapped != tt.wrapped {
			t.Errorf("payloadJSON(%q) = %s, %v, want %s, %v", tt.in, got, wrapped, tt.want, tt.wrapped)
		}
		if !json.Valid(got) {
			t.Errorf("payloadJSON(%q) = %s is not valid JSON", tt.in, got)
		}
	}
}
