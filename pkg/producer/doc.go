// Package producer implements the upstream side of the telemetry
// protocol: a hub that consumers connect to over any transport.Port.
//
// The hub simulates a set of devices, each a bank of registers whose
// values drift and wrap within 1..100 on a fixed physics tick. A consumer
// subscribing to "device_<n>" receives a binary snapshot and the device's
// register configs, then binary deltas against the state it was last
// sent, no faster than its requested frame rate. Every other channel is
// a last-value store: publish stores and fans out, get reads it back.
//
// Each connected port is a session with its own outbound queue, so a slow
// consumer never stalls the broadcast tick. When a session's queue is
// full, device deltas are skipped for that tick and the next delta covers
// the gap.
package producer
