package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive once the peer has disconnected.
var ErrClosed = errors.New("connection closed")

// Conn is a bidirectional message stream to one client. Send is safe for
// concurrent use; Receive must be called from a single goroutine.
type Conn interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(v any) error
	Close() error
	RemoteAddr() string
}
