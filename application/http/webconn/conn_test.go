package webconn

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/me7398/monarch/transport"
	"github.com/me7398/monarch/transport/pipe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

// bufConn reads a fixed input and records what is written to it.
type bufConn struct {
	r *bytes.Reader
	w bytes.Buffer

	failWrites bool
}

var _ transport.Conn = (*bufConn)(nil)

func newBufConn(input string) *bufConn {
	return &bufConn{r: bytes.NewReader([]byte(input))}
}

func (b *bufConn) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, transport.ErrConnClosed
	}
	return n, err
}

func (b *bufConn) Write(p []byte) (int, error) {
	if b.failWrites {
		return 0, transport.ErrConnClosed
	}
	return b.w.Write(p)
}

func (b *bufConn) Close() error               { return nil }
func (b *bufConn) LocalAddr() transport.Addr  { return pipe.Addr{Name: "local"} }
func (b *bufConn) RemoteAddr() transport.Addr { return pipe.Addr{Name: "remote"} }
func (b *bufConn) SetReadDeadLine(time.Time)  {}
func (b *bufConn) SetWriteDeadLine(time.Time) {}

func testOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Clock: clock.NewMock()}
}

func newTestConn(con transport.Conn) *Conn {
	return New(con, testOptions())
}

// unread drains what c has not consumed yet.
func unread(c *Conn) string {
	rest, _ := io.ReadAll(c.r)
	return string(rest)
}

// entity declares encodings and a length without a header behind them.
type entity struct {
	content, transfer string
	length            int64
}

func (e entity) ContentEncoding() string  { return e.content }
func (e entity) TransferEncoding() string { return e.transfer }
func (e entity) ContentLength() int64     { return e.length }

// token is a multipart parent given by its delimiter token.
type token string

func (t token) Boundary() string    { return string(t) }
func (t token) EndBoundary() string { return string(t) + "--" }

// xorCoder flips every bit, so encoded bytes never look like the input.
type xorCoder struct{}

func (xorCoder) Token() string                             { return "x-xor" }
func (xorCoder) NewWriter(w io.WriteCloser) io.WriteCloser { return &xorWriter{w: w} }
func (xorCoder) NewReader(r io.Reader) io.Reader           { return &xorReader{r: r} }

type xorWriter struct{ w io.WriteCloser }

func (x *xorWriter) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	for i := range p {
		b[i] = ^p[i]
	}
	return x.w.Write(b)
}

func (x *xorWriter) Close() error { return x.w.Close() }

type xorReader struct{ r io.Reader }

func (x *xorReader) Read(p []byte) (int, error) {
	n, err := x.r.Read(p)
	for i := range p[:n] {
		p[i] = ^p[i]
	}
	return n, err
}

// ConnTestSuite runs a client and a server over an in-memory pipe.
type ConnTestSuite struct {
	suite.Suite

	client, server *Conn
	metrics        *Metrics
}

func TestConnTestSuite(t *testing.T) {
	suite.Run(t, new(ConnTestSuite))
}

func (s *ConnTestSuite) SetupTest() {
	s.metrics = NewMetrics(prometheus.NewRegistry(), "test")

	opts := testOptions()
	opts.Metrics = s.metrics
	opts.ContentCoders = append(opts.ContentCoders, xorCoder{})

	s.client, s.server = newPipeConns(opts)
}

func (s *ConnTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.NoError(s.client.Close())
	s.NoError(s.server.Close())
}

func (s *ConnTestSuite) exchange(send, receive func() error) {
	s.Require().NoError(exchange(s.client, s.server, send, receive))
}

// exchange runs send and receive concurrently. A side that fails closes its
// connection so the other one is not left blocked.
func exchange(client, server *Conn, send, receive func() error) error {
	var g errgroup.Group
	g.Go(func() error {
		err := send()
		if err != nil {
			client.Close()
		}
		return err
	})
	g.Go(func() error {
		err := receive()
		if err != nil {
			server.Close()
		}
		return err
	})
	return g.Wait()
}

func newPipeConns(opts Options) (client, server *Conn) {
	c1, c2 := pipe.New("client", "server", opts.Clock)
	return New(c1, opts), New(c2, opts)
}

func (s *ConnTestSuite) TestScenarioContentLength() {
	sent := semantic.NewRequestHeader(semantic.MethodPost, "/upload")
	sent.SetContentLength(11)

	var (
		got  semantic.RequestHeader
		body bytes.Buffer
	)

	s.exchange(
		func() error {
			if err := s.client.SendHeader(sent); err != nil {
				return err
			}
			return s.client.SendBody(strings.NewReader("hello world"), sent)
		},
		func() error {
			if err := s.server.ReceiveHeader(&got); err != nil {
				return err
			}
			return s.server.ReceiveBody(&body, &got)
		},
	)

	s.Equal(sent.String(), got.String())
	s.Equal(int64(11), got.ContentLength())
	s.Equal("hello world", body.String())

	s.Equal(float64(11), testutil.ToFloat64(s.metrics.BytesReceived.WithLabelValues("receive body")))
	s.Equal(float64(11), testutil.ToFloat64(s.metrics.BytesSent.WithLabelValues("send body")))
	s.Equal(float64(len(sent.String())), testutil.ToFloat64(s.metrics.BytesSent.WithLabelValues("send header")))
}

func (s *ConnTestSuite) TestResponseExchange() {
	sent := semantic.NewResponseHeader(status.OK)
	sent.SetDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	sent.SetTransferEncoding("chunked")
	sent.SetContentEncoding("x-xor")

	var (
		got  semantic.ResponseHeader
		body []byte
	)

	s.exchange(
		func() error {
			if err := s.client.SendHeader(sent); err != nil {
				return err
			}
			return s.client.WriteBody([]byte("response body"), sent)
		},
		func() (err error) {
			if err := s.server.ReceiveHeader(&got); err != nil {
				return err
			}
			body, err = s.server.ReadBody(&got)
			return err
		},
	)

	s.Equal(uint(200), got.Status().Code)
	s.Equal("response body", string(body))
}

func TestSendBodyPartHeader(t *testing.T) {
	con := newBufConn("")
	c := newTestConn(con)

	var part semantic.BodyPartHeader
	part.SetFormData("field", "")

	require.NoError(t, c.SendBodyPartHeader(&part, "--abc"))
	assert.Equal(t, "--abc\r\n"+part.String(), con.w.String())
}

func TestReceiveHeader(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		opts     func(*Options)
		kind     error
		want     string
		leftover string
	}{
		{
			desc:     "request",
			input:    "GET / HTTP/1.1\r\nHost: example.com\r\n\r\nbody",
			want:     "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n",
			leftover: "body",
		},
		{
			desc:  "stream ends without empty line",
			input: "GET / HTTP/1.1\r\nHost: example.com\r\n",
			want:  "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n",
		},
		{
			desc:  "sole LF allowed",
			input: "GET / HTTP/1.1\nHost: example.com\n\n",
			opts:  func(o *Options) { o.Decode.AllowSoleLF = true },
			want:  "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n",
		},
		{
			desc:  "sole LF rejected",
			input: "GET / HTTP/1.1\nHost: example.com\n\n",
			kind:  ErrProtocol,
		},
		{
			desc:  "empty",
			input: "",
			kind:  ErrProtocol,
		},
		{
			desc:  "only empty line",
			input: "\r\n",
			kind:  ErrProtocol,
		},
		{
			desc:  "malformed",
			input: "GET\r\n\r\n",
			kind:  ErrProtocol,
		},
		{
			desc:  "too large",
			input: "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n",
			opts:  func(o *Options) { o.MaxHeaderBytes = 20 },
			kind:  ErrProtocol,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			opts := testOptions()
			if tc.opts != nil {
				tc.opts(&opts)
			}
			c := New(newBufConn(tc.input), opts)

			var h semantic.RequestHeader
			err := c.ReceiveHeader(&h)
			if tc.kind != nil {
				require.ErrorIs(t, err, tc.kind)

				var werr *Error
				require.ErrorAs(t, err, &werr)
				assert.Equal(t, "receive header", werr.Op)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, h.String())
			assert.Equal(t, tc.leftover, unread(c))
		})
	}
}

func TestSendFailure(t *testing.T) {
	con := newBufConn("")
	con.failWrites = true
	c := newTestConn(con)

	err := c.SendHeader(semantic.NewRequestHeader(semantic.MethodGet, "/"))
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrConnClosed)

	err = c.SendBody(strings.NewReader("body"), entity{})
	require.ErrorIs(t, err, ErrTransport)
}

func TestFailuresCounted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry(), "")
	opts := testOptions()
	opts.Metrics = metrics

	c := New(newBufConn(""), opts)
	require.ErrorIs(t, c.ReceiveHeader(&semantic.RequestHeader{}), ErrProtocol)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures.WithLabelValues("receive header", "protocol")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.sent("op", 1)
		m.received("op", 1)
		m.took("op", time.Second)
		m.failed("op", ErrTransport)
		m.reached(NormalBoundary)
	})
}

func TestError(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := error(&Error{Op: "receive body", Kind: ErrTransport, cause: cause})

	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "receive body: transport failure: unexpected EOF", err.Error())
}

func TestBoundaryString(t *testing.T) {
	assert.Equal(t, "none", NoBoundary.String())
	assert.Equal(t, "normal", NormalBoundary.String())
	assert.Equal(t, "terminal", TerminalBoundary.String())
}
