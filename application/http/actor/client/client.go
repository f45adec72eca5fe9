package client

import (
	"context"
	"io"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

// DialFunc opens a connection to the server.
type DialFunc func(ctx context.Context) (transport.Conn, error)

// Client sends each request over a connection of its own.
type Client struct {
	dial DialFunc

	opts Options

	logger *slog.Logger
	clock  clock.Clock
}

func New(
	dial DialFunc,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	if opts.Conn.Logger == nil {
		opts.Conn.Logger = logger
	}
	if opts.Conn.Clock == nil {
		opts.Conn.Clock = clock
	}

	return &Client{
		dial:   dial,
		opts:   opts,
		logger: logger,
		clock:  clock,
	}
}

// Part is a body part of a multipart request.
type Part struct {
	Header *semantic.BodyPartHeader
	Body   io.Reader
}

// Send writes request and body, then waits for the response header.
// A nil body sends none. The caller reads the response body from the exchange and closes it.
func (c *Client) Send(ctx context.Context, request *semantic.RequestHeader, body io.Reader) (*Exchange, error) {
	ex, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	if err := ex.conn.SendHeader(request); err != nil {
		return nil, ex.abort(errors.Wrap(err, "sending request header"))
	}
	if body != nil {
		if err := ex.conn.SendBody(body, request); err != nil {
			return nil, ex.abort(errors.Wrap(err, "sending request body"))
		}
	}

	if err := ex.receive(); err != nil {
		return nil, ex.abort(err)
	}
	return ex, nil
}

// Upload sends parts as a multipart/form-data request to target.
// The request header is made multipart with a fresh boundary when it carries none.
func (c *Client) Upload(ctx context.Context, request *semantic.RequestHeader, parts []Part) (*Exchange, error) {
	if len(parts) == 0 {
		return nil, errors.New("uploading without parts")
	}
	if request.Boundary() == "" {
		request.SetMultipart("form-data", "")
	}

	ex, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	if err := ex.conn.SendHeader(request); err != nil {
		return nil, ex.abort(errors.Wrap(err, "sending request header"))
	}

	for i, part := range parts {
		var err error
		if i == 0 {
			err = ex.conn.SendBodyPartHeader(part.Header, request.Boundary())
		} else {
			err = ex.conn.SendHeader(part.Header)
		}
		if err != nil {
			return nil, ex.abort(errors.Wrapf(err, "sending header of part %d", i))
		}

		final := i == len(parts)-1
		if err := ex.conn.SendBodyPartBody(part.Body, request, part.Header, final); err != nil {
			return nil, ex.abort(errors.Wrapf(err, "sending body of part %d", i))
		}
	}

	if err := ex.receive(); err != nil {
		return nil, ex.abort(err)
	}
	return ex, nil
}

func (c *Client) open(ctx context.Context) (*Exchange, error) {
	if timeout := c.opts.Timeout.ExchangeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		ex, err := c.openConn(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		ex.cancel = cancel
		return ex, nil
	}

	return c.openConn(ctx)
}

func (c *Client) openConn(ctx context.Context) (*Exchange, error) {
	con, err := c.dial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dialing")
	}

	c.logger.Debug("connection opened", "addr", con.RemoteAddr().String())

	ex := &Exchange{
		ctx:  ctx,
		conn: webconn.New(con, c.opts.Conn),
		// Unblocks pending reads and writes once ctx is done.
		stop: context.AfterFunc(ctx, func() { con.Close() }),
	}
	return ex, nil
}
