package webconn

import (
	"io"

	"github.com/me7398/monarch/application/util/rule"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/pkg/errors"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc2046#section-5.1.1
func delimiters(parent Multipart) (normal, terminal []byte, err error) {
	if parent.Boundary() == "" || parent.EndBoundary() == "" {
		return nil, nil, protocolError{errors.New("multipart header has no boundary")}
	}

	normal = framed(parent.Boundary())
	terminal = framed(parent.EndBoundary())
	return normal, terminal, nil
}

func framed(token string) []byte {
	b := make([]byte, 0, len(token)+4)
	b = append(b, rule.CRLF...)
	b = append(b, token...)
	return append(b, rule.CRLF...)
}

// SendBodyPartBody sends a part body like [Conn.SendBody] and then the delimiter
// that follows it: the terminal one when final is set.
func (c *Conn) SendBodyPartBody(src io.Reader, parent Multipart, part Encodings, final bool) error {
	const op = "send body part body"
	start := c.clock.Now()

	normal, terminal, err := delimiters(parent)
	if err != nil {
		return c.fail(op, ErrProtocol, err)
	}

	n, err := c.sendBody(src, part)
	c.metrics.sent(op, n)
	if err != nil {
		return c.fail(op, ErrTransport, err)
	}

	delim, boundary := normal, NormalBoundary
	if final {
		delim, boundary = terminal, TerminalBoundary
	}
	if err := c.write(delim); err != nil {
		return c.fail(op, ErrTransport, err)
	}

	c.metrics.sent(op, int64(len(delim)))
	c.done(op, start, "bytes", n, "boundary", boundary.String())
	return nil
}

// ReceiveBodyPartBody copies a part body to dst, decoded with the codings part declares,
// and returns the delimiter that ended it. What follows the delimiter is left unread.
func (c *Conn) ReceiveBodyPartBody(dst io.Writer, parent Multipart, part Encodings) (Boundary, error) {
	return c.receivePart("receive body part body", dst, parent, part)
}

// SkipBodyPartBody is [Conn.ReceiveBodyPartBody] discarding the part body.
func (c *Conn) SkipBodyPartBody(parent Multipart, part Encodings) (Boundary, error) {
	return c.receivePart("skip body part body", io.Discard, parent, part)
}

func (c *Conn) receivePart(op string, dst io.Writer, parent Multipart, part Encodings) (Boundary, error) {
	start := c.clock.Now()

	normal, terminal, err := delimiters(parent)
	if err != nil {
		return NoBoundary, c.fail(op, ErrProtocol, err)
	}

	br := iolib.NewBoundaryReader(c.r, normal, terminal)

	n, err := c.receiveBody(dst, br, part, -1)
	c.metrics.received(op, n)
	if err == nil {
		// Decoders may stop before the delimiter, e.g. at the last chunk.
		_, err = io.Copy(io.Discard, br)
	}
	if err != nil {
		return NoBoundary, c.fail(op, ErrProtocol, err)
	}

	boundary := reached(br)
	c.metrics.reached(boundary)
	c.done(op, start, "bytes", n, "boundary", boundary.String())
	return boundary, nil
}

// SkipPreamble discards a multipart body up to and including its first delimiter.
func (c *Conn) SkipPreamble(parent Multipart) (Boundary, error) {
	return c.preamble("skip preamble", io.Discard, parent)
}

// ReceivePreamble copies the preamble of a multipart body to dst
// and consumes its first delimiter.
func (c *Conn) ReceivePreamble(dst io.Writer, parent Multipart) (Boundary, error) {
	return c.preamble("receive preamble", dst, parent)
}

func (c *Conn) preamble(op string, dst io.Writer, parent Multipart) (Boundary, error) {
	start := c.clock.Now()

	normal, terminal, err := delimiters(parent)
	if err != nil {
		return NoBoundary, c.fail(op, ErrProtocol, err)
	}

	// The first delimiter may open the body without a CRLF before it.
	br := iolib.NewBoundaryReader(c.r, normal, terminal)
	br.Unread(rule.CRLF)

	sink := &skipWriter{w: sinkWriter{w: dst}, skip: len(rule.CRLF)}
	if _, err := io.CopyBuffer(sink, br, make([]byte, c.opts.BufferSize)); err != nil {
		return NoBoundary, c.fail(op, ErrProtocol, err)
	}

	boundary := reached(br)
	c.metrics.reached(boundary)
	c.done(op, start, "bytes", sink.n, "boundary", boundary.String())
	return boundary, nil
}

func reached(br *iolib.BoundaryReader) Boundary {
	switch br.Reached() {
	case 0:
		return NormalBoundary
	case 1:
		return TerminalBoundary
	}
	return NoBoundary
}

// skipWriter drops the first skip bytes written to it.
type skipWriter struct {
	w    io.Writer
	skip int
	n    int64
}

func (s *skipWriter) Write(p []byte) (int, error) {
	total := len(p)
	if s.skip > 0 {
		k := min(s.skip, len(p))
		p, s.skip = p[k:], s.skip-k
	}
	if len(p) == 0 {
		return total, nil
	}

	if _, err := iolib.WriteFull(s.w, p); err != nil {
		return 0, err
	}
	s.n += int64(len(p))
	return total, nil
}
