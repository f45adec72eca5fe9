package webconn

import (
	"io"
	"strings"

	"github.com/me7398/monarch/application/util/rule"
	"github.com/pkg/errors"
)

var errEmptyHeader = errors.New("header has no lines")

// SendHeader writes the text of h.
func (c *Conn) SendHeader(h Header) error {
	const op = "send header"
	start := c.clock.Now()

	text := h.String()
	if err := c.write([]byte(text)); err != nil {
		return c.fail(op, ErrTransport, err)
	}

	c.metrics.sent(op, int64(len(text)))
	c.done(op, start, "bytes", len(text))
	return nil
}

// SendBodyPartHeader writes boundary and CRLF followed by the text of h, in one write.
// It opens the first part of a multipart body; later parts follow the delimiter
// written by [Conn.SendBodyPartBody] and are sent with [Conn.SendHeader].
func (c *Conn) SendBodyPartHeader(h Header, boundary string) error {
	const op = "send body part header"
	start := c.clock.Now()

	text := boundary + string(rule.CRLF) + h.String()
	if err := c.write([]byte(text)); err != nil {
		return c.fail(op, ErrTransport, err)
	}

	c.metrics.sent(op, int64(len(text)))
	c.done(op, start, "bytes", len(text), "boundary", boundary)
	return nil
}

// ReceiveHeader reads lines up to an empty line or the end of the stream and parses them into h.
func (c *Conn) ReceiveHeader(h Header) error {
	const op = "receive header"
	start := c.clock.Now()

	text, err := c.readHeader()
	if err != nil {
		return c.fail(op, ErrProtocol, err)
	}

	if err := h.Parse(text); err != nil {
		return c.fail(op, ErrProtocol, protocolError{errors.Wrap(err, "parsing header")})
	}

	c.done(op, start, "bytes", len(text))
	return nil
}

func (c *Conn) readHeader() (string, error) {
	var (
		sb    strings.Builder
		lines int
	)

	for {
		line, err := c.lines.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "reading header line")
		}
		if len(line) == 0 {
			break
		}

		lines++
		sb.Write(line)
		sb.Write(rule.CRLF)

		if limit := c.opts.MaxHeaderBytes; limit > 0 && uint(sb.Len()) > limit {
			return "", protocolError{errors.Errorf("header exceeds %d bytes", limit)}
		}
	}

	if lines == 0 {
		return "", protocolError{errEmptyHeader}
	}
	return sb.String(), nil
}
