package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/delta"
	"github.com/worthb0123/go-shared-fork/pkg/log"
)

var testTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

const testConnID = "abc12345-6789-0123-4567-890abcdef012"

// createTestLogFile writes events to a fresh log file and returns its path.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create log: %v", err)
	}
	defer f.Close()
	if err := log.WriteEvents(f, events...); err != nil {
		t.Fatalf("failed to write events: %v", err)
	}
	return path
}

func deltaEvent(frame []byte) log.Event {
	ev := log.NewFrameEvent(testConnID, log.DirectionIn, true, frame)
	ev.Timestamp = testTime
	return ev
}

func TestFormatDeltaFrame(t *testing.T) {
	b := delta.NewBuilder(16)
	if err := b.Pair(7, 42); err != nil {
		t.Fatal(err)
	}
	if err := b.Run(100, []uint8{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	formatEvent(&buf, deltaEvent(b.Bytes()))
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"IN  TRANSPORT Delta",
		"Records: 2",
		"PAIR [7] = 42",
		"RUN [100..103) 3 values",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in:\n%s", want, output)
		}
	}
}

func TestFormatDeltaFrameLimitsRecords(t *testing.T) {
	b := delta.NewBuilder(64)
	for i := range 12 {
		if err := b.Pair(i, uint8(i)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	formatEvent(&buf, deltaEvent(b.Bytes()))
	output := buf.String()

	if !strings.Contains(output, "... 4 more") {
		t.Errorf("expected record cutoff, got:\n%s", output)
	}
	if strings.Contains(output, "PAIR [8]") {
		t.Errorf("record 8 should be elided:\n%s", output)
	}
}

func TestFormatMalformedDelta(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, deltaEvent([]byte{byte(delta.OpPair), 0x01}))

	if !strings.Contains(buf.String(), "Malformed:") {
		t.Errorf("expected malformed marker, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "0101") {
		t.Errorf("expected hex dump, got:\n%s", buf.String())
	}
}

func TestFormatTextFrame(t *testing.T) {
	ev := log.NewFrameEvent(testConnID, log.DirectionOut, false, []byte(`{"type":"get","channel":"x"}`))
	ev.Timestamp = testTime

	var buf bytes.Buffer
	formatEvent(&buf, ev)

	if !strings.Contains(buf.String(), "OUT TRANSPORT Frame") {
		t.Errorf("unexpected header:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `Text: {"type":"get","channel":"x"}`) {
		t.Errorf("expected text body:\n%s", buf.String())
	}
}

func TestFormatMessageEvent(t *testing.T) {
	id := uint64(42)
	latency := 1500 * time.Microsecond
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: testConnID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Channel:      "device_1",
		Message: &log.MessageEvent{
			Type:      "error",
			RequestID: &id,
			Error:     "channel not found",
			Latency:   &latency,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"IN  WIRE error device_1",
		"RequestID: 42",
		"Error: channel not found",
		"Latency: 1.500ms",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in:\n%s", want, output)
		}
	}
}

func TestFormatStateAndError(t *testing.T) {
	state := log.NewStateEvent(testConnID, log.StateEntitySubscription, "", "subscribed", "")
	state.Channel = "device_2"
	errEv := log.NewErrorEvent(testConnID, log.LayerClient, log.ErrorKindCallback, os.ErrClosed, "device_2")

	var buf bytes.Buffer
	formatEvent(&buf, state)
	formatEvent(&buf, errEv)
	output := buf.String()

	for _, want := range []string{
		"Entity: SUBSCRIPTION",
		"-> subscribed",
		"Kind: callback",
		"Context: device_2",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in:\n%s", want, output)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("CLIENT"); err != nil || l != log.LayerClient {
		t.Errorf("ParseLayerFlag(CLIENT) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("ParseLayerFlag(service) should fail")
	}
	if d, err := ParseDirectionFlag("Out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(Out) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("delta"); err != nil || c != log.CategoryDelta {
		t.Errorf("ParseCategoryFlag(delta) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("ParseCategoryFlag(snapshot) should fail")
	}
}

func TestRunViewFilters(t *testing.T) {
	b := delta.NewBuilder(4)
	_ = b.Pair(1, 1)
	msg := log.Event{
		Timestamp: testTime, ConnectionID: "conn-1", Layer: log.LayerWire,
		Category: log.CategoryMessage, Channel: "device_1",
		Message: &log.MessageEvent{Type: "subscribe"},
	}
	other := msg
	other.Channel = "device_2"
	other.Message = &log.MessageEvent{Type: "unsubscribe"}
	path := createTestLogFile(t, []log.Event{deltaEvent(b.Bytes()), msg, other})

	cat := log.CategoryMessage
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat, Channel: "device_1"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "subscribe device_1") {
		t.Errorf("expected subscribe event:\n%s", output)
	}
	if strings.Contains(output, "unsubscribe") || strings.Contains(output, "Delta") {
		t.Errorf("filtered events leaked:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "none.tlog"), ViewFilter{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
