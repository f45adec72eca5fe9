package transfer

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/me7398/monarch/application/http"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ChunkedReaderTestSuite struct {
	suite.Suite
}

func TestChunkedReaderTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkedReaderTestSuite))
}

func (s *ChunkedReaderTestSuite) TestRead() {
	input := []byte("" +
		"5;ext=foo\r\n" +
		"ABCDE\r\n" +
		"a\r\n" +
		"FGHIJKLNMO\r\n" +
		"0\r\n" + // last chunk
		"Hello: World\r\n" + // trailer
		"\r\n", // empty trailer (last trailer)
	)

	trailers := make([]http.Field, 0)
	coder := NewChunkedCoder()
	coder.OnTrailers = func(f []http.Field) { trailers = f }
	cr := coder.NewReader(bytes.NewReader(input)).(*ChunkedReader)

	buf := make([]byte, 2)
	// First read reads only AB
	n, err := cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(len(buf), n)
	s.Equal([]byte("AB"), buf)

	buf = make([]byte, 10)
	// Second read reads all the data in first chunk.
	n, err = cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Equal([]byte("CDE"), buf[:n])

	// Third read reads all the data in second chunk.
	n, err = cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(len(buf), n)
	s.Equal([]byte("FGHIJKLNMO"), buf)

	// Fourth read reads last chunk.
	n, err = cr.Read(buf)
	s.Require().ErrorIs(err, io.EOF)
	s.Equal(0, n)

	s.Equal([]http.Field{{Name: "Hello", Value: "World"}}, trailers)
}

func (s *ChunkedReaderTestSuite) TestDecodeChunk() {
	testcases := []struct {
		desc     string
		input    []byte
		expected Chunk
		wantErr  bool
	}{
		{
			desc:  "example chunk",
			input: []byte("5;ext=foo\r\n"),
			expected: Chunk{
				Size:       5,
				Extensions: [][2]string{{"ext", "foo"}},
			},
		},
		{
			desc:  "BWS inside chunk",
			input: []byte("5 ; ext = foo\r\n"),
			expected: Chunk{
				Size:       5,
				Extensions: [][2]string{{"ext", "foo"}},
			},
		},
		{
			desc:  "quoted extension",
			input: []byte("1a;name=\"a b\"\r\n"),
			expected: Chunk{
				Size:       0x1a,
				Extensions: [][2]string{{"name", "a b"}},
			},
		},
		{
			desc:    "malformed chunk (empty)",
			input:   []byte("\r\n"),
			wantErr: true,
		},
		{
			desc:    "sole LF",
			input:   []byte("5\n"),
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			cr := NewChunkedReader(bytes.NewReader(tc.input))

			err := cr.decodeChunk()
			if tc.wantErr {
				s.Error(err)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, *cr.LastChunk())
		})
	}
}

func TestDecodeChunkSize(t *testing.T) {
	testcases := []struct {
		desc     string
		input    []byte
		expected uint
		wantErr  bool
	}{
		{
			desc:     "normal hex",
			input:    []byte("FF"),
			expected: 0xFF,
		},
		{
			desc:    "invalid hex",
			input:   []byte("haha this aint hex"),
			wantErr: true,
		},
		{
			desc:    "hex too long",
			input:   []byte("FFFFFFFFFFFFFFFFFF"), // 9 bytes
			wantErr: true,
		},
		{
			desc:    "signed",
			input:   []byte("-1"),
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			size, err := decodeChunkSize(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedChunk)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, size)
		})
	}
}

func (s *ChunkedReaderTestSuite) TestDecodeTrailers() {
	r := strings.NewReader(
		"" +
			"Hello: World\r\n" +
			"Foo: Bar\r\n" +
			"\r\n",
	)
	expected := []http.Field{
		{Name: "Hello", Value: "World"},
		{Name: "Foo", Value: "Bar"},
	}

	store := make([]http.Field, 0)
	cr := NewChunkedReader(r)
	cr.SetOnTrailerReceived(func(f []http.Field) { store = f })

	s.NoError(cr.decodeTrailers())
	s.Equal(expected, store)
}

func (s *ChunkedReaderTestSuite) TestMalformed() {
	testcases := []struct {
		desc    string
		input   string
		wantErr error
	}{
		{desc: "cut in data", input: "5\r\nAB", wantErr: io.ErrUnexpectedEOF},
		{desc: "cut before last chunk", input: "2\r\nAB\r\n", wantErr: io.ErrUnexpectedEOF},
		{desc: "cut in trailers", input: "0\r\nFoo: bar\r\n", wantErr: io.ErrUnexpectedEOF},
		{desc: "missing crlf", input: "2\r\nABCD\r\n0\r\n\r\n", wantErr: ErrMissingCRLF},
		{desc: "bad size", input: "zz\r\n", wantErr: ErrMalformedChunk},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			_, err := io.ReadAll(NewChunkedReader(strings.NewReader(tc.input)))
			s.ErrorIs(err, tc.wantErr)
		})
	}
}

func (s *ChunkedReaderTestSuite) TestLeavesRestInSource() {
	input := "3\r\nabc\r\n0\r\n\r\nnext message"

	s.Run("until reader", func() {
		ur := iolib.NewUntilReader(strings.NewReader(input))

		b, err := io.ReadAll(NewChunkedReader(ur))
		s.Require().NoError(err)
		s.Equal("abc", string(b))

		rest, err := io.ReadAll(ur)
		s.Require().NoError(err)
		s.Equal("next message", string(rest))
	})

	s.Run("unreader", func() {
		br := iolib.NewBoundaryReader(strings.NewReader(input+"\r\n--X\r\n"), []byte("\r\n--X\r\n"))

		b, err := io.ReadAll(NewChunkedReader(br))
		s.Require().NoError(err)
		s.Equal("abc", string(b))

		rest, err := io.ReadAll(br)
		s.Require().NoError(err)
		s.Equal("next message", string(rest))
	})
}

type ChunkedWriterTestSuite struct {
	suite.Suite
}

func TestChunkedWriterTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkedWriterTestSuite))
}

func (s *ChunkedWriterTestSuite) TestWrite() {
	w := &stubWriteCloser{}
	cw := NewChunkedCoder().NewWriter(w).(*ChunkedWriter)

	// Empty write is ignored
	n, err := cw.Write(nil)
	s.Require().NoError(err)
	s.Require().Zero(n)
	s.Require().Empty(w.buf.Bytes())

	cw.SetExtensions([][2]string{{"foo", "bar"}, {"name", "a b"}})
	p := []byte("ABC")

	expected := []byte("" +
		"3;foo=bar;name=\"a b\"\r\n" +
		"ABC\r\n",
	)

	n, err = cw.Write(p)
	s.Require().NoError(err)
	s.Equal(len(p), n)
	s.Equal(expected, w.buf.Bytes())
	s.False(w.closed)
}

func (s *ChunkedWriterTestSuite) TestClose() {
	trailers := []http.Field{{Name: "foo", Value: "bar"}}
	w := &stubWriteCloser{}

	coder := NewChunkedCoder()
	coder.Trailers = func() []http.Field { return trailers }
	cw := coder.NewWriter(w).(*ChunkedWriter)

	cw.SetExtensions([][2]string{{"foo", "bar"}})
	expected := []byte("" +
		"0;foo=bar\r\n" +
		"foo: bar\r\n" +
		"\r\n",
	)

	s.Require().NoError(cw.Close())
	s.Equal(expected, w.buf.Bytes())
	s.True(w.closed)

	// Closing twice writes nothing more.
	s.Require().NoError(cw.Close())
	s.Equal(expected, w.buf.Bytes())

	_, err := cw.Write([]byte("late"))
	s.Error(err)
}

func (s *ChunkedWriterTestSuite) TestCloseNoTrailers() {
	w := &stubWriteCloser{}
	cw := NewChunkedWriter(w)

	s.Require().NoError(cw.Close())
	s.Equal("0\r\n\r\n", w.buf.String())
}

func TestChunkedRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 1000)

	w := &stubWriteCloser{}
	cw := NewChunkedWriter(w)
	for rest := payload; len(rest) > 0; {
		n := min(len(rest), 777)
		_, err := cw.Write(rest[:n])
		require.NoError(t, err)
		rest = rest[n:]
	}
	require.NoError(t, cw.Close())

	b, err := io.ReadAll(NewChunkedReader(iotest.OneByteReader(&w.buf)))
	require.NoError(t, err)
	assert.Equal(t, payload, b)
}

type stubWriteCloser struct {
	buf    bytes.Buffer
	closed bool
}

var _ io.WriteCloser = (*stubWriteCloser)(nil)

func (w *stubWriteCloser) Close() error {
	w.closed = true
	return nil
}

func (w *stubWriteCloser) Write(p []byte) (n int, err error) {
	return w.buf.Write(p)
}
