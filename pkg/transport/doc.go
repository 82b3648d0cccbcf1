// Package transport provides the message-passing ports telemetry
// connections run over.
//
// A Port carries discrete messages in both directions. Each message is
// either text (a JSON control envelope) or binary (a delta frame). Ports
// preserve message boundaries and per-port FIFO order, and copy payloads
// at the boundary so neither side can observe the other's buffers.
//
// Three implementations are provided:
//
//	Pipe           in-memory pair, for tests and in-process producers
//	WebSocketPort  text and binary websocket frames map 1:1 to kinds
//	StreamPort     length-prefixed frames over any byte stream (TCP)
//
// Stream framing:
//
//	┌──────────────┬──────┬─────────────────┐
//	│ length (4B)  │ kind │ payload         │
//	│ big-endian   │ (1B) │ length-1 bytes  │
//	└──────────────┴──────┴─────────────────┘
package transport
