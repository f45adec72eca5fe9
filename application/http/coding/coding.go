// Package coding keeps the content and transfer codings a connection can apply.
package coding

import "io"

// Encoder wraps a destination so bytes written to it come out encoded.
// Closing the returned writer flushes trailing framing and closes w.
type Encoder interface {
	NewWriter(w io.WriteCloser) io.WriteCloser
}

// Decoder wraps a source so bytes read from it come out decoded.
type Decoder interface {
	NewReader(r io.Reader) io.Reader
}

// Coder is a coding able to do both directions, named by its token.
type Coder interface {
	Encoder
	Decoder
	Token() string
}

type EncoderFunc func(w io.WriteCloser) io.WriteCloser

func (f EncoderFunc) NewWriter(w io.WriteCloser) io.WriteCloser { return f(w) }

type DecoderFunc func(r io.Reader) io.Reader

func (f DecoderFunc) NewReader(r io.Reader) io.Reader { return f(r) }

// Namespace separates content codings from transfer codings.
type Namespace uint8

const (
	Content Namespace = iota
	Transfer
)

func (ns Namespace) String() string {
	switch ns {
	case Content:
		return "content"
	case Transfer:
		return "transfer"
	}
	return "unknown"
}

// Legacy aliases registered alongside their coding.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4.1
var aliases = map[string]string{
	"gzip":     "x-gzip",
	"compress": "x-compress",
}
