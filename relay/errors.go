package relay

import (
	"errors"
	"fmt"
)

// Common errors for relay connections
var (
	// ErrSocketClosed indicates the socket has been disconnected
	ErrSocketClosed = errors.New("socket closed")

	// ErrNoSocket indicates no socket connection exists
	ErrNoSocket = errors.New("no socket connection")

	// ErrChannelClosed indicates the channel has been torn down
	ErrChannelClosed = errors.New("channel closed")

	// ErrTimeout indicates no reply arrived within the timeout window
	ErrTimeout = errors.New("push timed out")

	// ErrEmptyTopic indicates a channel topic could not be derived
	ErrEmptyTopic = errors.New("empty channel topic")
)

// SocketError represents a transport-level error with operation context
type SocketError struct {
	Op  string // operation that caused the error
	URL string // relay address if relevant
	Err error  // underlying error
}

func (e *SocketError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("relay %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("relay %s: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

func newSocketError(op, url string, err error) *SocketError {
	return &SocketError{
		Op:  op,
		URL: url,
		Err: err,
	}
}
