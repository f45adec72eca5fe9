package server

import (
	"context"
	"io"
	"strings"

	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

// HandleFunc answers a request. The request body, if any, is read from [HandleContext.Conn].
type HandleFunc func(c *HandleContext, request *semantic.RequestHeader) *Response

// Response is the header and body a handler answers with. A nil Body sends no body.
type Response struct {
	Header *semantic.ResponseHeader
	Body   io.Reader
}

// TextResponse answers with a plain text body of known length.
func TextResponse(s status.Status, text string) *Response {
	h := semantic.NewResponseHeader(s)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.SetContentLength(int64(len(text)))
	return &Response{Header: h, Body: strings.NewReader(text)}
}

type HandleContext struct {
	ctx context.Context

	remoteAddr transport.Addr
	conn       *webconn.Conn

	request *semantic.RequestHeader

	closeConn bool

	// Should only be used inside this struct.
	_fatalError error
}

func (c *HandleContext) doHandle(handle HandleFunc) (res *Response, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("handler panicked: %s", e)
		}
	}()

	response := handle(c, c.request)
	if c._fatalError != nil {
		return nil, c._fatalError
	}

	if response == nil && !c.closeConn {
		return nil, errors.New("nil response is forbidden")
	}
	if response != nil && response.Header == nil {
		return nil, errors.New("response without header is forbidden")
	}

	return response, nil
}

func (c *HandleContext) RemoteAddr() transport.Addr { return c.remoteAddr }
func (c *HandleContext) Context() context.Context   { return c.ctx }

// Conn is the connection the request arrived on.
func (c *HandleContext) Conn() *webconn.Conn { return c.conn }

// Error turns err into the response it deserves.
// It returns nil when the connection is beyond answering.
func (c *HandleContext) Error(err error) *Response {
	if err == nil {
		c._fatalError = errors.New("using Error() with nil error is forbidden")
		return nil
	}

	c.closeConn = true

	if errors.Is(err, webconn.ErrTransport) {
		return nil
	}

	if statusErr := new(status.Error); errors.As(err, statusErr) {
		return statusErrToResponse(*statusErr)
	}

	if errors.Is(err, webconn.ErrProtocol) || errors.Is(err, webconn.ErrTruncatedMultipart) {
		return statusErrToResponse(status.NewError(err, status.BadRequest))
	}

	return statusErrToResponse(status.NewError(err, status.InternalServerError))
}

func statusErrToResponse(se status.Error) *Response {
	if se.Cause() == nil {
		return TextResponse(se.Status, "")
	}
	return TextResponse(se.Status, se.Cause().Error())
}
