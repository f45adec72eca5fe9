package semantic

import (
	"github.com/me7398/monarch/application/http"
	"github.com/pkg/errors"
)

// RequestHeader is the request line and header fields of a request.
type RequestHeader struct {
	Line http.RequestLine
	Entity
}

func NewRequestHeader(method Method, target string) *RequestHeader {
	return &RequestHeader{
		Line: http.RequestLine{Method: string(method), Target: target, Version: http.Version1_1},
	}
}

func (r *RequestHeader) Method() Method { return Method(r.Line.Method) }

// Parse replaces r with the header in text.
func (r *RequestHeader) Parse(text string) error {
	start, fields, err := http.DecodeHeader(text, parseOptions, true)
	if err != nil {
		return errors.Wrap(err, "decoding request header")
	}

	line, err := http.ParseRequestLine(start)
	if err != nil {
		return err
	}

	*r = RequestHeader{Line: line, Entity: Entity{HeadersFrom(fields)}}
	return nil
}

func (r *RequestHeader) String() string {
	return http.EncodeHeader(r.Line.Text(), r.Fields(), http.DefaultEncodeOptions)
}

var parseOptions = http.DecodeOptions{AllowSoleLF: true}
