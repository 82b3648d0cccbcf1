// Package wire defines the control envelope exchanged between telemetry
// consumers and the upstream producer.
//
// Control messages are JSON text. Every message carries a type
// discriminator and, depending on the type, a channel, a requested update
// rate, a payload, a request ID and an error string:
//
//	{"type":"subscribe","channel":"device_1","fps":10,"requestId":3}
//	{"type":"get","channel":"device_1","requestId":4}
//	{"requestId":4,"data":{"x":1}}
//	{"type":"config","channel":"device_1","data":[{"scale":2,"offset":1}]}
//
// Register values themselves do not travel in this envelope. They are sent
// as raw binary delta frames (see package delta) on the same port.
//
// # Request IDs
//
// Consumers stamp every outgoing message with a monotonically increasing
// request ID, including fire-and-forget messages. The producer echoes the
// ID on its acknowledgement. Unsolicited pushes omit the key entirely, so
// a request ID of 0 is a valid, correlatable value.
package wire
