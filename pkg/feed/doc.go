// Package feed bridges MQTT topics into producer channels.
//
// Each Route subscribes one MQTT topic filter and republishes every
// message it receives on a channel, either a fixed one or the message
// topic itself. Payloads that are valid JSON are published as-is; any
// other payload is published as a JSON string.
package feed
