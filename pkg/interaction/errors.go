package interaction

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrRequestTimeout indicates no correlated reply arrived in time.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrClientClosed indicates the client was disconnected.
	ErrClientClosed = errors.New("client is closed")

	// ErrAbandoned is returned by a request whose client disconnected
	// before the reply arrived. It matches both ErrRequestTimeout and
	// ErrClientClosed.
	ErrAbandoned = fmt.Errorf("%w: %w", ErrRequestTimeout, ErrClientClosed)

	// ErrCallback marks a subscriber callback that panicked. It is logged,
	// never returned.
	ErrCallback = errors.New("callback failed")
)

// RemoteError is a request the producer answered with an error string.
type RemoteError struct {
	RequestID uint64
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (request %d): %s", e.RequestID, e.Message)
}
