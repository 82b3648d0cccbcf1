// Package delta implements the binary delta frame format used to ship
// changed register values.
//
// A frame is a concatenation of variable-length records with no length
// prefix, channel ID or checksum. Each record starts with a one-byte
// opcode:
//
//	Pair (1): [1] [idxLo] [idxHi] [value]
//	Run  (2): [2] [startLo] [startHi] [count] [value]*count
//
// Indices are 16-bit little-endian, values are single raw bytes. A frame
// must be consumed exactly: unknown opcodes fail with ErrProtocol and
// records that overrun the buffer fail with ErrTruncatedFrame. Parsing a
// frame is all-or-nothing, so callers never observe half a frame.
package delta
