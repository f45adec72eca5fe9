package client

import (
	"context"
	"io"

	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/pkg/errors"
)

// Exchange is a request answered on its own connection.
type Exchange struct {
	Response semantic.ResponseHeader

	ctx    context.Context
	conn   *webconn.Conn
	stop   func() bool
	cancel context.CancelFunc
}

func (e *Exchange) receive() error {
	if err := e.conn.ReceiveHeader(&e.Response); err != nil {
		return errors.Wrap(err, "receiving response header")
	}
	return nil
}

// ReceiveBody decodes the response body into dst.
func (e *Exchange) ReceiveBody(dst io.Writer) error {
	if err := e.conn.ReceiveBody(dst, &e.Response); err != nil {
		return errors.Wrap(err, "receiving response body")
	}
	return nil
}

// ReadBody returns the decoded response body.
func (e *Exchange) ReadBody() ([]byte, error) {
	b, err := e.conn.ReadBody(&e.Response)
	if err != nil {
		return nil, errors.Wrap(err, "receiving response body")
	}
	return b, nil
}

// Close releases the connection.
func (e *Exchange) Close() error {
	e.stop()
	if e.cancel != nil {
		e.cancel()
	}
	return e.conn.Close()
}

// abort closes the exchange, blaming ctx when it is the reason of err.
func (e *Exchange) abort(err error) error {
	e.Close()
	if ctxErr := e.ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, err.Error())
	}
	return err
}
