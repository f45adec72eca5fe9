package semantic

import (
	"strings"
	"testing"
	"time"

	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestContentLength(t *testing.T) {
	testcases := []struct {
		desc     string
		value    string
		set      bool
		expected int64
	}{
		{desc: "absent", expected: -1},
		{desc: "zero", value: "0", set: true, expected: 0},
		{desc: "number", value: " 1234 ", set: true, expected: 1234},
		{desc: "negative", value: "-5", set: true, expected: -1},
		{desc: "garbage", value: "ten", set: true, expected: -1},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			var e Entity
			if tc.set {
				e.Set("Content-Length", tc.value)
			}
			assert.Equal(t, tc.expected, e.ContentLength())
		})
	}
}

func TestSetContentLength(t *testing.T) {
	var e Entity
	e.SetContentLength(42)
	assert.Equal(t, int64(42), e.ContentLength())

	e.SetContentLength(-1)
	_, ok := e.Get("Content-Length")
	assert.False(t, ok)
}

func TestEncodings(t *testing.T) {
	var e Entity
	e.Add("Content-Encoding", "gzip")
	e.Add("content-encoding", "zstd")
	e.SetTransferEncoding("gzip", "chunked")

	assert.Equal(t, "gzip, zstd", e.ContentEncoding())
	assert.Equal(t, "gzip, chunked", e.TransferEncoding())

	e.SetContentEncoding()
	assert.Equal(t, "", e.ContentEncoding())
}

func TestMultipart(t *testing.T) {
	var e Entity
	assert.Equal(t, "", e.Boundary())
	assert.Equal(t, "", e.EndBoundary())
	assert.False(t, e.IsMultipart())

	e.Set("Content-Type", `multipart/mixed; boundary="simple boundary"`)
	assert.True(t, e.IsMultipart())
	assert.Equal(t, "--simple boundary", e.Boundary())
	assert.Equal(t, "--simple boundary--", e.EndBoundary())

	boundary := e.SetMultipart("form-data", "")
	assert.NotEmpty(t, boundary)
	assert.Equal(t, "--"+boundary, e.Boundary())

	mt, params, err := e.MediaType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mt)
	assert.Equal(t, boundary, params["boundary"])
}

func TestNewBoundary(t *testing.T) {
	a, b := NewBoundary(), NewBoundary()
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(a), 70)
}

type HeaderTextTestSuite struct {
	suite.Suite
}

func TestHeaderTextTestSuite(t *testing.T) {
	suite.Run(t, new(HeaderTextTestSuite))
}

func (s *HeaderTextTestSuite) TestRequestHeader() {
	text := "" +
		"POST /upload HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: multipart/form-data; boundary=xyz\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n"

	var h RequestHeader
	s.Require().NoError(h.Parse(text))

	s.Equal(MethodPost, h.Method())
	s.Equal("/upload", h.Line.Target)
	s.Equal(http.Version1_1, h.Line.Version)
	s.Equal("--xyz", h.Boundary())
	s.Equal("chunked", h.TransferEncoding())
	s.Equal(int64(-1), h.ContentLength())
	s.Equal(text, h.String())
}

func (s *HeaderTextTestSuite) TestRequestHeaderBuilt() {
	h := NewRequestHeader(MethodPut, "/files/a.txt")
	h.SetContentLength(3)

	s.Equal("PUT /files/a.txt HTTP/1.1\r\nContent-Length: 3\r\n\r\n", h.String())
}

func (s *HeaderTextTestSuite) TestParseWithoutBlankLine() {
	var h RequestHeader
	s.Require().NoError(h.Parse("GET / HTTP/1.1\nHost: a"))

	v, ok := h.Get("Host")
	s.True(ok)
	s.Equal("a", v)
}

func (s *HeaderTextTestSuite) TestParseReplaces() {
	h := NewRequestHeader(MethodGet, "/")
	h.Set("X-Old", "1")

	s.Require().NoError(h.Parse("POST /new HTTP/1.0\r\n\r\n"))
	_, ok := h.Get("X-Old")
	s.False(ok)
	s.Equal("/new", h.Line.Target)
}

func (s *HeaderTextTestSuite) TestMalformed() {
	testcases := []struct {
		desc   string
		header interface{ Parse(string) error }
		text   string
	}{
		{desc: "request line", header: &RequestHeader{}, text: "GET /\r\n\r\n"},
		{desc: "status line", header: &ResponseHeader{}, text: "HTTP/1.1 OK\r\n\r\n"},
		{desc: "field", header: &BodyPartHeader{}, text: "no colon\r\n\r\n"},
		{desc: "missing start line", header: &RequestHeader{}, text: "\r\n"},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			s.Error(tc.header.Parse(tc.text))
		})
	}
}

func (s *HeaderTextTestSuite) TestResponseHeader() {
	h := NewResponseHeader(status.Created)
	date := time.Date(1994, 11, 6, 8, 49, 37, 0, time.UTC)
	h.SetDate(date)
	h.SetContentEncoding("gzip")

	text := h.String()
	s.True(strings.HasPrefix(text, "HTTP/1.1 201 Created\r\n"))

	var parsed ResponseHeader
	s.Require().NoError(parsed.Parse(text))
	s.Equal(status.Created, parsed.Status())
	s.Equal("gzip", parsed.ContentEncoding())

	got, err := parsed.Date()
	s.Require().NoError(err)
	s.True(date.Equal(got))

	s.Require().NoError(parsed.Parse("HTTP/1.1 404\r\n\r\n"))
	s.Equal(status.NotFound, parsed.Status())
}

func (s *HeaderTextTestSuite) TestBodyPartHeader() {
	var h BodyPartHeader
	h.SetFormData("file", "a b.txt")
	h.Set("Content-Type", "text/plain")

	text := h.String()
	s.Equal("Content-Disposition: form-data; filename=\"a b.txt\"; name=file\r\nContent-Type: text/plain\r\n\r\n", text)

	var parsed BodyPartHeader
	s.Require().NoError(parsed.Parse(text))

	disposition, params, err := parsed.Disposition()
	s.Require().NoError(err)
	s.Equal("form-data", disposition)
	s.Equal("file", params["name"])
	s.Equal("a b.txt", params["filename"])
}
