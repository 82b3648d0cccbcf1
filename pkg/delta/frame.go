package delta

import (
	"errors"
	"fmt"
)

// Frame errors.
var (
	// ErrProtocol indicates an unrecognized opcode.
	ErrProtocol = errors.New("protocol error")

	// ErrTruncatedFrame indicates a record that needs more bytes than remain.
	ErrTruncatedFrame = errors.New("truncated frame")
)

// Opcode identifies a record kind.
type Opcode uint8

const (
	// OpPair updates one register.
	OpPair Opcode = 1

	// OpRun updates count consecutive registers.
	OpRun Opcode = 2
)

// Record sizes in bytes.
const (
	PairSize      = 4
	RunHeaderSize = 4

	// MaxRunLength is the largest count a single Run record can carry.
	MaxRunLength = 255

	// MaxIndex is the largest addressable register index.
	MaxIndex = 0xFFFF
)

// String returns the opcode name.
func (op Opcode) String() string {
	switch op {
	case OpPair:
		return "PAIR"
	case OpRun:
		return "RUN"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint8(op))
	}
}

// FrameError reports where in a frame decoding failed.
type FrameError struct {
	Offset int
	Opcode Opcode
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v at offset %d (%s)", e.Err, e.Offset, e.Opcode)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Record is one decoded update: Values are applied to consecutive indices
// starting at Start. A Pair decodes to a Record with one value.
type Record struct {
	Op     Opcode
	Start  int
	Values []uint8
}

// End returns one past the last index the record touches.
func (r Record) End() int {
	return r.Start + len(r.Values)
}

// Parse decodes every record in frame. The returned value slices alias
// frame. On error no records are returned.
func Parse(frame []byte) ([]Record, error) {
	var records []Record
	err := Walk(frame, func(r Record) {
		records = append(records, r)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Validate checks that frame is well formed without allocating records.
func Validate(frame []byte) error {
	return Walk(frame, nil)
}

// Walk validates the whole frame first and then calls fn for each record
// in order. fn is never called for a malformed frame. fn may be nil.
func Walk(frame []byte, fn func(Record)) error {
	if err := walk(frame, nil); err != nil {
		return err
	}
	if fn != nil {
		return walk(frame, fn)
	}
	return nil
}

func walk(frame []byte, fn func(Record)) error {
	ptr := 0
	for ptr < len(frame) {
		op := Opcode(frame[ptr])
		switch op {
		case OpPair:
			if len(frame)-ptr < PairSize {
				return &FrameError{Offset: ptr, Opcode: op, Err: ErrTruncatedFrame}
			}
			idx := int(frame[ptr+1]) | int(frame[ptr+2])<<8
			if fn != nil {
				fn(Record{Op: op, Start: idx, Values: frame[ptr+3 : ptr+4]})
			}
			ptr += PairSize

		case OpRun:
			if len(frame)-ptr < RunHeaderSize {
				return &FrameError{Offset: ptr, Opcode: op, Err: ErrTruncatedFrame}
			}
			start := int(frame[ptr+1]) | int(frame[ptr+2])<<8
			count := int(frame[ptr+3])
			body := ptr + RunHeaderSize
			if len(frame)-body < count {
				return &FrameError{Offset: ptr, Opcode: op, Err: ErrTruncatedFrame}
			}
			if fn != nil {
				fn(Record{Op: op, Start: start, Values: frame[body : body+count]})
			}
			ptr = body + count

		default:
			return &FrameError{Offset: ptr, Opcode: op, Err: ErrProtocol}
		}
	}
	return nil
}
