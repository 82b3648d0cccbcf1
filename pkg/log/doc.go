// Package log captures protocol events of telemetry connections.
//
// It is separate from operational logging (slog). A protocol log is a
// machine-readable trace of every frame, envelope and state change on a
// connection, written as a stream of CBOR-encoded events:
//
//	// Console while developing
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary file for later analysis with telemon-log
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/telemon/monitor.tlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// Events are captured at three layers:
//   - Transport: raw text and binary messages (FrameEvent)
//   - Wire: decoded control envelopes (MessageEvent)
//   - Client: connection and subscription lifecycle (StateChangeEvent)
//
// Errors from any layer use ErrorEventData.
package log
