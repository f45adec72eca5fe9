package http

import (
	"bytes"

	"github.com/me7398/monarch/application/util/rule"
)

type EncodeOptions struct {
	// UseSoleLF specifies wheter a single LF character should be used as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF: false,
}

// HeaderEncoder builds header text line by line.
type HeaderEncoder struct {
	buf  bytes.Buffer
	opts EncodeOptions
}

func NewHeaderEncoder(opts EncodeOptions) *HeaderEncoder {
	return &HeaderEncoder{opts: opts}
}

func (he *HeaderEncoder) WriteLine(line []byte) {
	he.buf.Write(line)

	term := rule.CRLF
	if he.opts.UseSoleLF {
		term = term[1:]
	}
	he.buf.Write(term)
}

func (he *HeaderEncoder) WriteFields(fields []Field) {
	for _, f := range fields {
		he.WriteLine(f.Text())
	}
}

// String returns the text written so far followed by the empty line ending a header.
func (he *HeaderEncoder) String() string {
	end := HeaderEncoder{opts: he.opts}
	end.WriteLine(nil)
	return he.buf.String() + end.buf.String()
}

// EncodeHeader renders a start line (omitted when nil) and fields as header text.
func EncodeHeader(startLine []byte, fields []Field, opts EncodeOptions) string {
	he := NewHeaderEncoder(opts)
	if startLine != nil {
		he.WriteLine(startLine)
	}
	he.WriteFields(fields)
	return he.String()
}
