package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// KindSize is the size of the kind byte that starts every frame body.
	KindSize = 1

	// DefaultMaxMessageSize bounds one message payload. A full config
	// array for ten thousand registers is well under this.
	DefaultMaxMessageSize = 4 << 20
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates a frame with no kind byte.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrUnknownKind indicates a kind byte other than text or binary.
	ErrUnknownKind = errors.New("unknown message kind")
)

// FrameWriter writes length-prefixed frames. Safe for concurrent use.
type FrameWriter struct {
	mu             sync.Mutex
	w              io.Writer
	maxMessageSize uint32
	buf            []byte
}

// NewFrameWriter creates a frame writer with the default size limit.
func NewFrameWriter(w io.Writer, maxSize uint32) *FrameWriter {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &FrameWriter{w: w, maxMessageSize: maxSize}
}

// WriteFrame writes one message as a single frame.
func (fw *FrameWriter) WriteFrame(msg Message) error {
	if !msg.Kind.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, msg.Kind)
	}
	if uint32(len(msg.Data)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg.Data), fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	// One Write per frame keeps frames whole on the stream.
	n := LengthPrefixSize + KindSize + len(msg.Data)
	if cap(fw.buf) < n {
		fw.buf = make([]byte, n)
	}
	buf := fw.buf[:n]
	binary.BigEndian.PutUint32(buf, uint32(KindSize+len(msg.Data)))
	buf[LengthPrefixSize] = byte(msg.Kind)
	copy(buf[LengthPrefixSize+KindSize:], msg.Data)

	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FrameReader reads length-prefixed frames. Not safe for concurrent use.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte
}

// NewFrameReader creates a frame reader. maxSize 0 selects the default.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &FrameReader{r: r, maxMessageSize: maxSize}
}

// ReadFrame reads one frame. It returns io.EOF only on a clean end of
// stream between frames.
func (fr *FrameReader) ReadFrame() (Message, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return Message{}, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, ErrFrameTruncated
		}
		return Message{}, fmt.Errorf("read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length < KindSize {
		return Message{}, ErrMessageEmpty
	}
	if length-KindSize > fr.maxMessageSize {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length-KindSize, fr.maxMessageSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return Message{}, ErrFrameTruncated
		}
		return Message{}, fmt.Errorf("read payload: %w", err)
	}

	kind := Kind(body[0])
	if !kind.IsValid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, body[0])
	}
	return Message{Kind: kind, Data: body[KindSize:]}, nil
}

// FrameSize returns the encoded size of a payload.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + KindSize + payloadSize
}
