package http

import (
	"io"
	"strings"
	"testing"

	"github.com/me7398/monarch/application/util/rule"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LineReaderTestSuite struct {
	suite.Suite
}

func TestLineReaderTestSuite(t *testing.T) {
	suite.Run(t, new(LineReaderTestSuite))
}

func (s *LineReaderTestSuite) TestReadLine() {
	testcases := []struct {
		desc     string
		opts     DecodeOptions
		input    string
		expected string
		wantErr  error
	}{
		{
			desc:     "simple line with CRLF",
			input:    "Hello\r\n",
			expected: "Hello",
		},
		{
			desc:    "line exceeding limit",
			input:   "Hey\r\n",
			opts:    DecodeOptions{MaxFieldLineLength: 2},
			wantErr: ErrLineTooLong,
		},
		{
			desc:    "Sole LF (fail)",
			input:   "Hello\n",
			wantErr: ErrMissingCRBeforeLF,
		},
		{
			desc:     "Sole LF (success)",
			opts:     DecodeOptions{AllowSoleLF: true},
			input:    "Hello\n",
			expected: "Hello",
		},
		{
			desc:     "bare CR in line",
			input:    "Hello \r World!\r\n",
			expected: "Hello   World!",
		},
		{
			desc:     "line with lenient whitespace",
			opts:     DecodeOptions{LenientWhitespace: true},
			input:    "Hello" + string(rule.Whitespaces) + "World!" + "\r\n",
			expected: "Hello" + strings.Repeat(" ", len(rule.Whitespaces)) + "World!",
		},
		{
			desc:     "lenient whitespace trimmed",
			opts:     DecodeOptions{LenientWhitespace: true},
			input:    string(rule.Whitespaces) + "Hey" + string(rule.Whitespaces) + "\r\n",
			expected: "Hey",
		},
		{
			desc:     "unterminated last line",
			input:    "Hello",
			expected: "Hello",
		},
		{
			desc:    "end of stream",
			input:   "",
			wantErr: io.EOF,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			lr := NewLineReader(iolib.NewUntilReader(strings.NewReader(tc.input)), tc.opts)

			b, err := lr.ReadLine()
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, string(b))
		})
	}
}

func (s *LineReaderTestSuite) TestReadLineKeepsRest() {
	ur := iolib.NewUntilReader(strings.NewReader("Host: a\r\n\r\nbody"))
	lr := NewLineReader(ur, DefaultDecodeOptions)

	fields, err := lr.ReadFields()
	s.Require().NoError(err)
	s.Equal([]Field{{"Host", "a"}}, fields)

	rest, err := io.ReadAll(ur)
	s.Require().NoError(err)
	s.Equal("body", string(rest))
}

func (s *LineReaderTestSuite) TestReadFields() {
	testcases := []struct {
		desc     string
		opts     DecodeOptions
		input    string
		expected []Field
		wantErr  error
	}{
		{
			desc: "simple headers",
			input: "" +
				"Content-Type: text/html\r\n" +
				"Content-Length: 123\r\n" +
				"\r\n",
			expected: []Field{
				{"Content-Type", "text/html"},
				{"Content-Length", "123"},
			},
		},
		{
			desc:     "no empty line",
			input:    "Content-Type: text/html\r\n",
			expected: []Field{{"Content-Type", "text/html"}},
		},
		{
			desc: "headers exceeding limit",
			opts: DecodeOptions{MaxFieldLineLength: 5},
			input: "" +
				"Content-Type: text/html\r\n" +
				"\r\n",
			wantErr: ErrLineTooLong,
		},
		{
			desc:    "malformed headers",
			input:   "Content-Type text/html\r\n",
			wantErr: ErrMalformedFieldLine,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			lr := NewLineReader(iolib.NewUntilReader(strings.NewReader(tc.input)), tc.opts)

			fields, err := lr.ReadFields()
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, fields)
		})
	}
}

func TestDecodeHeader(t *testing.T) {
	start, fields, err := DecodeHeader(""+
		"\r\n"+ // leading empty lines.
		"POST /upload HTTP/1.1\r\n"+
		"Content-Length: 3\r\n"+
		"\r\n", DefaultDecodeOptions, true)
	require.NoError(t, err)
	assert.Equal(t, "POST /upload HTTP/1.1", string(start))
	assert.Equal(t, []Field{{"Content-Length", "3"}}, fields)

	start, fields, err = DecodeHeader("Content-Type: text/plain\r\n\r\n", DefaultDecodeOptions, false)
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Equal(t, []Field{{"Content-Type", "text/plain"}}, fields)

	_, _, err = DecodeHeader("\r\n", DefaultDecodeOptions, true)
	assert.Error(t, err)
}
