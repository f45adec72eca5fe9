package webconn

import (
	"bytes"
	"io"
)

// SendBody streams src to the peer, encoded with the codings h declares.
// Bytes already written stay written when it fails.
func (c *Conn) SendBody(src io.Reader, h Encodings) error {
	const op = "send body"
	start := c.clock.Now()

	n, err := c.sendBody(src, h)
	c.metrics.sent(op, n)
	if err != nil {
		return c.fail(op, ErrTransport, err)
	}

	c.done(op, start, "bytes", n)
	return nil
}

func (c *Conn) sendBody(src io.Reader, h Encodings) (int64, error) {
	body, err := c.encodedReader(src, h)
	if err != nil {
		return 0, err
	}
	return io.CopyBuffer(c.w, body, make([]byte, c.opts.BufferSize))
}

// ReceiveBody copies the body of h to dst, decoded.
//
// A body declared chunked ends with its last chunk, whatever its length says.
// Otherwise a known length is read off the wire exactly and an unknown one
// lasts until the peer closes the connection.
func (c *Conn) ReceiveBody(dst io.Writer, h Entity) error {
	const op = "receive body"
	start := c.clock.Now()

	n, err := c.receiveBody(dst, c.r, h, h.ContentLength())
	c.metrics.received(op, n)
	if err != nil {
		return c.fail(op, ErrProtocol, err)
	}

	c.done(op, start, "bytes", n)
	return nil
}

func (c *Conn) receiveBody(dst io.Writer, wire io.Reader, h Encodings, length int64) (int64, error) {
	body, err := c.decodedReader(wire, h, length)
	if err != nil {
		return 0, err
	}

	n, err := io.CopyBuffer(sinkWriter{w: dst}, body, make([]byte, c.opts.BufferSize))
	if cerr := body.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	return n, body.drain()
}

// ReadBody returns the decoded body of h.
func (c *Conn) ReadBody(h Entity) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.ReceiveBody(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteBody sends body encoded with the codings h declares.
func (c *Conn) WriteBody(body []byte, h Encodings) error {
	return c.SendBody(bytes.NewReader(body), h)
}
