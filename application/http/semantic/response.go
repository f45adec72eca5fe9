package semantic

import (
	"time"

	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/pkg/errors"
)

// ResponseHeader is the status line and header fields of a response.
type ResponseHeader struct {
	Line http.StatusLine
	Entity
}

func NewResponseHeader(s status.Status) *ResponseHeader {
	return &ResponseHeader{
		Line: http.StatusLine{Version: http.Version1_1, StatusCode: s.Code, ReasonPhrase: s.ReasonPhrase},
	}
}

// Status returns the status of the response.
// An empty reason phrase is filled in for known codes.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-4-9
func (r *ResponseHeader) Status() status.Status {
	if r.Line.ReasonPhrase == "" {
		s, _ := status.FromCode(r.Line.StatusCode)
		return s
	}
	return status.Status{Code: r.Line.StatusCode, ReasonPhrase: r.Line.ReasonPhrase}
}

// Date returns the Date field, zero when absent.
func (r *ResponseHeader) Date() (time.Time, error) {
	v, ok := r.Get("Date")
	if !ok {
		return time.Time{}, nil
	}
	return ParseDate(v)
}

func (r *ResponseHeader) SetDate(t time.Time) {
	r.Set("Date", FormatDate(t))
}

// Parse replaces r with the header in text.
func (r *ResponseHeader) Parse(text string) error {
	start, fields, err := http.DecodeHeader(text, parseOptions, true)
	if err != nil {
		return errors.Wrap(err, "decoding response header")
	}

	line, err := http.ParseStatusLine(start)
	if err != nil {
		return err
	}

	*r = ResponseHeader{Line: line, Entity: Entity{HeadersFrom(fields)}}
	return nil
}

func (r *ResponseHeader) String() string {
	return http.EncodeHeader(r.Line.Text(), r.Fields(), http.DefaultEncodeOptions)
}
