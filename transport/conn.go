package transport

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConnClosed         = errors.New("connection is closed")
	ErrDeadLineExceeded   = errors.New("deadline exceeded")
	ErrConnListenerClosed = errors.New("listener is closed")
)

// Conn is a raw, ordered byte connection.
// Read and Write block until they make progress, the deadline passes or either side closes.
// Reading from a connection whose counterpart has closed reports [ErrConnClosed].
type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error

	LocalAddr() Addr
	RemoteAddr() Addr

	SetReadDeadLine(t time.Time)
	SetWriteDeadLine(t time.Time)
}

// ConnListener hands out accepted connections.
// Accept returns [ErrConnListenerClosed] once the listener is closed.
type ConnListener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() Addr
	Close() error
}
