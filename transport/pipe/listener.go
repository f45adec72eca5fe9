package pipe

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/transport"
)

type dialRequest struct {
	conn     transport.Conn
	accepted chan struct{}
}

// Listener accepts pipe connections made with [Listener.Dial].
type Listener struct {
	addr  Addr
	clock clock.Clock

	requests  chan dialRequest
	closed    chan struct{}
	closeOnce sync.Once
}

var _ transport.ConnListener = (*Listener)(nil)

func NewListener(name string, clk clock.Clock) *Listener {
	return &Listener{
		addr:     Addr{Name: name},
		clock:    clk,
		requests: make(chan dialRequest),
		closed:   make(chan struct{}),
	}
}

func (l *Listener) Addr() transport.Addr { return l.addr }

// Dial connects to the listener, blocking until it accepts.
func (l *Listener) Dial(ctx context.Context, name string) (transport.Conn, error) {
	local, remote := New(name, l.addr.Name, l.clock)
	req := dialRequest{conn: remote, accepted: make(chan struct{})}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case l.requests <- req:
	}

	<-req.accepted
	return local, nil
}

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case req := <-l.requests:
		close(req.accepted)
		return req.conn, nil
	}
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}
