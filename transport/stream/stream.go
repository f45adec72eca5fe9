// Package stream adapts a [net.Conn] into a [transport.Conn].
package stream

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

type conn struct {
	net.Conn
}

var _ transport.Conn = conn{}

// Wrap adapts c. Closure and deadline errors are reported as
// [transport.ErrConnClosed] and [transport.ErrDeadLineExceeded].
func Wrap(c net.Conn) transport.Conn {
	return conn{Conn: c}
}

// Dial connects to addr on the named network, e.g. "tcp".
func Dial(ctx context.Context, network, addr string) (transport.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing")
	}
	return Wrap(c), nil
}

func (c conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	return n, translate(err)
}

func (c conn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	return n, translate(err)
}

func (c conn) Close() error {
	if err := c.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c conn) LocalAddr() transport.Addr  { return c.Conn.LocalAddr() }
func (c conn) RemoteAddr() transport.Addr { return c.Conn.RemoteAddr() }

func (c conn) SetReadDeadLine(t time.Time)  { _ = c.Conn.SetReadDeadline(t) }
func (c conn) SetWriteDeadLine(t time.Time) { _ = c.Conn.SetWriteDeadline(t) }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	}
	return err
}

// Listener accepts connections as [transport.Conn].
type Listener struct {
	l net.Listener
}

var _ transport.ConnListener = (*Listener)(nil)

func Listen(network, addr string) (*Listener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "listening")
	}
	return &Listener{l: l}, nil
}

// Accept blocks until a connection arrives. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = l.l.Close() })
	defer stop()

	c, err := l.l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, transport.ErrConnListenerClosed
		}
		return nil, errors.Wrap(err, "accepting")
	}
	return Wrap(c), nil
}

func (l *Listener) Addr() transport.Addr { return l.l.Addr() }

func (l *Listener) Close() error {
	if err := l.l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
