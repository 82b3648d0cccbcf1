package delta

import "fmt"

// Builder appends records to a frame.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// Pair appends a Pair record.
func (b *Builder) Pair(index int, value uint8) error {
	if index < 0 || index > MaxIndex {
		return fmt.Errorf("pair index %d out of range", index)
	}
	b.buf = append(b.buf, byte(OpPair), byte(index), byte(index>>8), value)
	return nil
}

// Run appends a Run record. At most MaxRunLength values fit one record.
func (b *Builder) Run(start int, values []uint8) error {
	if start < 0 || start > MaxIndex {
		return fmt.Errorf("run start %d out of range", start)
	}
	if len(values) > MaxRunLength {
		return fmt.Errorf("run of %d values exceeds %d", len(values), MaxRunLength)
	}
	b.buf = append(b.buf, byte(OpRun), byte(start), byte(start>>8), byte(len(values)))
	b.buf = append(b.buf, values...)
	return nil
}

// Len returns the frame size so far.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Bytes returns the frame built so far.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Reset empties the builder, keeping its capacity.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// EncodeDelta encodes the registers of current that differ from previous.
// Indices beyond len(previous) count as changed. Consecutive changes become
// Runs of up to MaxRunLength values; isolated changes become Pairs.
// Indices above MaxIndex are not addressable and are skipped.
func EncodeDelta(current, previous []uint8) []byte {
	b := NewBuilder(0)
	n := len(current)
	if n > MaxIndex+1 {
		n = MaxIndex + 1
	}

	changed := func(i int) bool {
		return i >= len(previous) || current[i] != previous[i]
	}

	i := 0
	for i < n {
		if !changed(i) {
			i++
			continue
		}
		start := i
		for i < n && i-start < MaxRunLength && changed(i) {
			i++
		}
		if i-start == 1 {
			_ = b.Pair(start, current[start])
		} else {
			_ = b.Run(start, current[start:i])
		}
	}
	return b.Bytes()
}

// EncodeSnapshot encodes every register as a sequence of full Runs.
func EncodeSnapshot(state []uint8) []byte {
	n := len(state)
	if n > MaxIndex+1 {
		n = MaxIndex + 1
	}
	runs := (n + MaxRunLength - 1) / MaxRunLength
	b := NewBuilder(n + runs*RunHeaderSize)
	for i := 0; i < n; i += MaxRunLength {
		end := i + MaxRunLength
		if end > n {
			end = n
		}
		_ = b.Run(i, state[i:end])
	}
	return b.Bytes()
}
