// Package transfer implements HTTP/1.1 transfer codings.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7
package transfer

import (
	"io"

	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/http/coding"
)

const CodingChunked = "chunked"

// ChunkedCoder creates chunked readers and writers.
type ChunkedCoder struct {
	// OnTrailers, if set, receives the trailer fields of every decoded body that has any.
	OnTrailers func([]http.Field)
	// Trailers, if set, supplies the trailer fields when an encoded body is closed.
	Trailers func() []http.Field
}

var _ coding.Coder = (*ChunkedCoder)(nil)

func NewChunkedCoder() *ChunkedCoder {
	return &ChunkedCoder{}
}

func (c *ChunkedCoder) Token() string { return CodingChunked }

func (c *ChunkedCoder) NewReader(r io.Reader) io.Reader {
	cr := NewChunkedReader(r)
	cr.SetOnTrailerReceived(c.OnTrailers)
	return cr
}

func (c *ChunkedCoder) NewWriter(w io.WriteCloser) io.WriteCloser {
	cw := NewChunkedWriter(w)
	cw.SetSendTrailers(c.Trailers)
	return cw
}
