package server

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/me7398/monarch/application/http/transfer"
	"github.com/me7398/monarch/application/http/webconn"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

// conn serves a single exchange and closes.
type conn struct {
	con transport.Conn
	wc  *webconn.Conn

	handle HandleFunc
	clock  clock.Clock

	logger *slog.Logger

	opts Options
}

func (c *conn) start(ctx context.Context) {
	// Unblocks pending reads and writes when the server shuts down.
	stop := context.AfterFunc(ctx, func() { c.con.Close() })
	defer stop()

	defer func() {
		c.logger.Debug("closing connection")
		if err := c.wc.Close(); err != nil {
			c.logger.Error("error when closing connection", "error", err)
		}
	}()

	err := c.serve(ctx)

	switch {
	case ctx.Err() != nil:
		// no-op.
	case errors.Is(err, webconn.ErrTransport):
		c.logger.Info("connection failed", "error", err)
	case err != nil:
		c.logger.Error("unknown error occured", "error", err)
	}
}

func (c *conn) serve(ctx context.Context) error {
	if timeout := c.opts.Timeout.ReadTimeout; timeout > 0 {
		c.con.SetReadDeadLine(c.clock.Now().Add(timeout))
	}

	var request semantic.RequestHeader
	if err := c.wc.ReceiveHeader(&request); err != nil {
		if errors.Is(err, webconn.ErrTransport) {
			return err
		}
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
		return c.writeResponse(statusErrToResponse(status.NewError(err, status.BadRequest)))
	}

	c.logger.Debug("request received", "method", request.Line.Method, "target", request.Line.Target)

	hctx := &HandleContext{
		ctx:        ctx,
		remoteAddr: c.con.RemoteAddr(),
		conn:       c.wc,
		request:    &request,
	}
	response, err := hctx.doHandle(c.handle)
	if err != nil {
		return errors.Wrap(err, "unexpected error while handling request")
	}
	if response == nil {
		return nil
	}

	return c.writeResponse(response)
}

func (c *conn) writeResponse(response *Response) error {
	if timeout := c.opts.Timeout.WriteTimeout; timeout > 0 {
		c.con.SetWriteDeadLine(c.clock.Now().Add(timeout))
	}

	h := response.Header

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-6.6.1-6
	h.SetDate(c.clock.Now())
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-9.6
	h.Set("Connection", "close")

	var (
		body    = response.Body
		limited *iolib.LimitedReader
	)
	switch {
	case h.TransferEncoding() != "":
		// Delimited by its framing.
	case body == nil:
		h.SetContentLength(0)
	case h.ContentLength() >= 0:
		limited = &iolib.LimitedReader{R: body, N: uint(h.ContentLength())}
		body = limited
	default:
		h.SetTransferEncoding(transfer.CodingChunked)
	}

	if err := c.wc.SendHeader(h); err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	if err := c.wc.SendBody(body, h); err != nil {
		return err
	}
	if limited != nil && limited.N > 0 {
		// The peer is left waiting for bytes that never come.
		return errors.Errorf("response body is %d bytes shorter than its Content-Length", limited.N)
	}
	return nil
}
