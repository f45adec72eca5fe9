// Package webconn exchanges HTTP headers, bodies and multipart body parts
// over a raw byte connection, composing content and transfer codings around
// every body it streams.
package webconn

import (
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/http/coding"
	"github.com/me7398/monarch/application/http/transfer"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

// Header is a header that can be written as text and parsed back.
type Header interface {
	Parse(text string) error
	String() string
}

// Encodings are the codings a header declares for its body.
type Encodings interface {
	ContentEncoding() string
	TransferEncoding() string
}

// Entity is a header that may also declare the length of its body.
type Entity interface {
	Encodings
	// ContentLength is negative when the length is unknown.
	ContentLength() int64
}

// Multipart is the header enclosing a multipart body.
type Multipart interface {
	// Boundary is the delimiter token, leading dashes included.
	Boundary() string
	// EndBoundary is Boundary followed by "--".
	EndBoundary() string
}

// Boundary tells which delimiter ended a body part.
type Boundary uint8

const (
	NoBoundary Boundary = iota
	NormalBoundary
	TerminalBoundary
)

func (b Boundary) String() string {
	switch b {
	case NoBoundary:
		return "none"
	case NormalBoundary:
		return "normal"
	case TerminalBoundary:
		return "terminal"
	}
	return "unknown"
}

// Conn is not safe for concurrent use.
type Conn struct {
	con   transport.Conn
	r     *iolib.UntilReader
	w     io.Writer
	lines *http.LineReader

	codings *coding.Registry

	opts    Options
	logger  *slog.Logger
	clock   clock.Clock
	metrics *Metrics
}

func New(con transport.Conn, opts Options) *Conn {
	opts = opts.withDefaults()

	codings := coding.NewRegistry()
	codings.Register(coding.Transfer, transfer.NewChunkedCoder())
	for _, c := range opts.TransferCoders {
		codings.Register(coding.Transfer, c)
	}
	for _, c := range opts.ContentCoders {
		codings.Register(coding.Content, c)
	}

	r := iolib.NewUntilReader(wireReader{con: con})

	return &Conn{
		con:     con,
		r:       r,
		w:       wireWriter{con: con},
		lines:   http.NewLineReader(r, opts.Decode),
		codings: codings,
		opts:    opts,
		logger:  opts.Logger.With("conn", con.RemoteAddr().String()),
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
}

// Codings is the registry used by this connection. Changes apply to later calls.
func (c *Conn) Codings() *coding.Registry { return c.codings }

func (c *Conn) Close() error {
	if err := c.con.Close(); err != nil {
		return errors.Wrap(err, "closing connection")
	}
	return nil
}

// fail builds the error returned by op, logging and counting it.
func (c *Conn) fail(op string, fallback, err error) error {
	kind := classify(err, fallback)
	c.logger.Debug("operation failed", "op", op, "kind", kindLabel(kind), "error", err)
	c.metrics.failed(op, kind)
	return &Error{Op: op, Kind: kind, cause: err}
}

func (c *Conn) done(op string, start time.Time, attrs ...any) {
	elapsed := c.clock.Since(start)
	c.metrics.took(op, elapsed)
	c.logger.Debug(op, append(attrs, "elapsed", elapsed)...)
}

// write sends p to the peer in a single write.
func (c *Conn) write(p []byte) error {
	_, err := iolib.WriteFull(c.w, p)
	return err
}

// wireReader ends the stream when the peer goes away.
type wireReader struct{ con transport.Conn }

func (r wireReader) Read(p []byte) (int, error) {
	n, err := r.con.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, transport.ErrConnClosed):
		return n, io.EOF
	}
	return n, wireError{errors.Wrap(err, "reading from connection")}
}

type wireWriter struct{ con transport.Conn }

func (w wireWriter) Write(p []byte) (int, error) {
	n, err := w.con.Write(p)
	if err != nil {
		err = wireError{errors.Wrap(err, "writing to connection")}
	}
	return n, err
}
