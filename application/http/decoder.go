package http

import (
	"bytes"
	"io"
	"strings"

	"github.com/me7398/monarch/application/util/rule"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies wheter a single LF character should be recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace replaces all [rule.Whitespaces] into [rule.SP].
	// And also trims preceding and trailinig whitespace.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength sets the limit of a single line length on headers, terminator included.
	// Zero means no limit.
	MaxFieldLineLength uint
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:        false,
	LenientWhitespace:  false,
	MaxFieldLineLength: 0,
}

var (
	ErrLineTooLong          = errors.New("line length exceeds limit")
	ErrMissingCRBeforeLF    = errors.New("missing CR before LF")
	ErrMalformedFieldLine   = errors.New("field line is malformed")
	ErrMalformedRequestLine = errors.New("request line is malformed")
	ErrMalformedStatusLine  = errors.New("status line is malformed")
)

// LineReader reads header lines off a stream without consuming anything past them.
type LineReader struct {
	r    *iolib.UntilReader
	opts DecodeOptions
}

func NewLineReader(r *iolib.UntilReader, opts DecodeOptions) *LineReader {
	return &LineReader{r: r, opts: opts}
}

// ReadLine returns the next line without its terminator.
// A final line that ends with the stream is returned as is; the call after it returns io.EOF.
func (lr *LineReader) ReadLine() ([]byte, error) {
	b, err := lr.r.ReadUntilLimit([]byte{rule.LF}, lr.opts.MaxFieldLineLength)
	switch {
	case err == io.EOF && len(b) > 0:
		if lr.opts.MaxFieldLineLength > 0 && uint(len(b)) >= lr.opts.MaxFieldLineLength {
			return nil, ErrLineTooLong
		}
		return lr.clean(b), nil
	case err != nil:
		return nil, err
	}

	b = b[:len(b)-1] // Remove LF.

	if len(b) > 0 && b[len(b)-1] == rule.CR {
		b = b[:len(b)-1]
	} else if !lr.opts.AllowSoleLF {
		return nil, ErrMissingCRBeforeLF
	}

	return lr.clean(b), nil
}

func (lr *LineReader) clean(b []byte) []byte {
	if lr.opts.LenientWhitespace {
		for _, c := range rule.Whitespaces {
			b = bytes.ReplaceAll(b, []byte{c}, []byte{rule.SP})
		}
		return bytes.Trim(b, string([]byte{rule.SP}))
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	return bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP})
}

// ReadFields reads field lines until an empty line or the end of the stream.
func (lr *LineReader) ReadFields() ([]Field, error) {
	fields := make([]Field, 0)
	for {
		line, err := lr.ReadLine()
		if err == io.EOF {
			return fields, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading field line")
		}

		if len(line) == 0 {
			return fields, nil
		}

		field, err := ParseField(line)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedFieldLine, err.Error())
		}
		fields = append(fields, field)
	}
}

// DecodeHeader splits header text into its optional start line and its fields.
// Empty lines before the start line are skipped.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func DecodeHeader(text string, opts DecodeOptions, hasStartLine bool) (startLine []byte, fields []Field, err error) {
	lr := NewLineReader(iolib.NewUntilReader(strings.NewReader(text)), opts)

	for hasStartLine {
		line, err := lr.ReadLine()
		if err == io.EOF {
			return nil, nil, errors.New("start line is missing")
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading start line")
		}
		if len(line) > 0 {
			startLine = line
			break
		}
	}

	fields, err = lr.ReadFields()
	if err != nil {
		return nil, nil, err
	}

	return startLine, fields, nil
}
