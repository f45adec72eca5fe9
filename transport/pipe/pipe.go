// Package pipe provides an in-memory, synchronous [transport.Conn] pair.
// Every Write blocks until the counterpart has read all of it, much like [net.Pipe].
package pipe

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/transport"
)

type Addr struct {
	Name string
}

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return a.Name }

var _ transport.Addr = Addr{}

type conn struct {
	incoming chan []byte // written by the counterpart.
	consumed chan int    // number of bytes the counterpart took from our last write.

	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once

	rdeadline, wdeadline *deadline

	peer *conn
	addr Addr
}

var _ transport.Conn = (*conn)(nil)

// New creates a connected pair of conns named name1 and name2.
// Deadlines are measured with clk.
func New(name1, name2 string, clk clock.Clock) (c1, c2 transport.Conn) {
	a, b := newConn(name1, clk), newConn(name2, clk)
	a.peer, b.peer = b, a
	return a, b
}

func newConn(name string, clk clock.Clock) *conn {
	return &conn{
		incoming:  make(chan []byte),
		consumed:  make(chan int),
		closed:    make(chan struct{}),
		rdeadline: newDeadline(clk),
		wdeadline: newDeadline(clk),
		addr:      Addr{Name: name},
	}
}

func (c *conn) LocalAddr() transport.Addr  { return c.addr }
func (c *conn) RemoteAddr() transport.Addr { return c.peer.addr }

func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *conn) Read(p []byte) (int, error) {
	if err := c.usable(c.rdeadline); err != nil {
		return 0, err
	}

	select {
	case b := <-c.incoming:
		n := copy(p, b)
		c.peer.consumed <- n
		return n, nil
	case <-c.closed:
		return 0, transport.ErrConnClosed
	case <-c.peer.closed:
		return 0, transport.ErrConnClosed
	case <-c.rdeadline.wait():
		return 0, transport.ErrDeadLineExceeded
	}
}

func (c *conn) Write(p []byte) (int, error) {
	if err := c.usable(c.wdeadline); err != nil {
		return 0, err
	}

	if len(p) == 0 {
		return 0, nil
	}

	// Writes must not interleave.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for len(p) > 0 {
		select {
		case c.peer.incoming <- p:
			n := <-c.consumed
			p = p[n:]
			written += n
		case <-c.closed:
			return written, transport.ErrConnClosed
		case <-c.peer.closed:
			return written, transport.ErrConnClosed
		case <-c.wdeadline.wait():
			return written, transport.ErrDeadLineExceeded
		}
	}

	return written, nil
}

func (c *conn) SetReadDeadLine(t time.Time)  { c.rdeadline.set(t) }
func (c *conn) SetWriteDeadLine(t time.Time) { c.wdeadline.set(t) }

func (c *conn) usable(d *deadline) error {
	switch {
	case fired(c.closed), fired(c.peer.closed):
		return transport.ErrConnClosed
	case fired(d.wait()):
		return transport.ErrDeadLineExceeded
	}
	return nil
}

// deadline is a channel that gets closed once its time passes.
type deadline struct {
	clock clock.Clock

	mu     sync.Mutex
	timer  *clock.Timer
	expire chan struct{}
}

func newDeadline(clk clock.Clock) *deadline {
	return &deadline{clock: clk, expire: make(chan struct{})}
}

func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if fired(d.expire) {
		d.expire = make(chan struct{})
	}

	// Zero value means no deadline.
	if t.IsZero() {
		return
	}

	until := d.clock.Until(t)
	if until <= 0 {
		close(d.expire)
		return
	}

	expire := d.expire
	d.timer = d.clock.AfterFunc(until, func() { close(expire) })
}

func (d *deadline) wait() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expire
}

func fired(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
