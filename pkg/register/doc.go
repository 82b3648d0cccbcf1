// Package register holds the consumer-side register values of one data
// source.
//
// A Store keeps two parallel arrays, raw bytes as received and scaled
// values computed from the per-index RegisterConfig, plus the current
// config array. Both arrays always have the same length and grow
// zero-filled when a frame addresses an index beyond the end.
//
// Binary delta frames are applied through ApplyFrame, which parses the
// whole frame before touching any value. Config arrays replace the
// previous configs wholesale and rescale every buffered raw value. Each
// successful mutation bumps a generation counter that renderers poll to
// decide whether to repaint.
//
// Config replacement may race with delta frames that reference stale or
// future indices. The store tolerates both: indices without config stay
// unscaled and configs beyond the value arrays grow them.
package register
