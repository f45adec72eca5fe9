package semantic

import (
	"mime"
	"strconv"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/pkg/errors"
)

// Entity holds the header fields describing a body: its length, codings and media type.
type Entity struct {
	Headers
}

// ContentLength returns the declared length, or -1 when it is absent or unusable.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6
func (e *Entity) ContentLength() int64 {
	v, ok := e.Get("Content-Length")
	if !ok {
		return -1
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func (e *Entity) SetContentLength(n int64) {
	if n < 0 {
		e.Del("Content-Length")
		return
	}
	e.Set("Content-Length", strconv.FormatInt(n, 10))
}

// ContentEncoding returns every Content-Encoding value joined by commas.
func (e *Entity) ContentEncoding() string { return e.Joined("Content-Encoding") }

// TransferEncoding returns every Transfer-Encoding value joined by commas.
func (e *Entity) TransferEncoding() string { return e.Joined("Transfer-Encoding") }

func (e *Entity) SetContentEncoding(codings ...string) {
	setList(&e.Headers, "Content-Encoding", codings)
}

func (e *Entity) SetTransferEncoding(codings ...string) {
	setList(&e.Headers, "Transfer-Encoding", codings)
}

func setList(h *Headers, key string, values []string) {
	if len(values) == 0 {
		h.Del(key)
		return
	}
	h.Set(key, strings.Join(values, ", "))
}

// MediaType parses Content-Type.
func (e *Entity) MediaType() (mediaType string, params map[string]string, err error) {
	v, ok := e.Get("Content-Type")
	if !ok {
		return "", nil, errors.New("no Content-Type")
	}

	mediaType, params, err = mime.ParseMediaType(v)
	if err != nil {
		return "", nil, errors.Wrap(err, "parsing Content-Type")
	}
	return mediaType, params, nil
}

func (e *Entity) IsMultipart() bool {
	mt, _, err := e.MediaType()
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

// Boundary returns the delimiter token of a multipart body: "--" followed by the boundary parameter.
// It is empty when Content-Type carries no boundary.
// Reference: https://datatracker.ietf.org/doc/html/rfc2046#section-5.1.1
func (e *Entity) Boundary() string {
	_, params, err := e.MediaType()
	if err != nil || params["boundary"] == "" {
		return ""
	}
	return "--" + params["boundary"]
}

// EndBoundary returns the delimiter token closing a multipart body.
func (e *Entity) EndBoundary() string {
	b := e.Boundary()
	if b == "" {
		return ""
	}
	return b + "--"
}

// SetMultipart sets Content-Type to multipart/subtype, generating a boundary when it is empty.
// It returns the boundary parameter in use.
func (e *Entity) SetMultipart(subtype, boundary string) string {
	if boundary == "" {
		boundary = NewBoundary()
	}
	e.Set("Content-Type", mime.FormatMediaType("multipart/"+subtype, map[string]string{"boundary": boundary}))
	return boundary
}

// NewBoundary returns a random boundary parameter made of alphanumerics.
func NewBoundary() string {
	return "monarch" + uniuri.NewLen(24)
}
