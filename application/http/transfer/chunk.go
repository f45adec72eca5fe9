package transfer

import (
	"bytes"
	"io"
	"strconv"

	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/util/rule"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/pkg/errors"
)

// Chunk size lines and trailer lines longer than this are rejected.
const maxLineLength = 4096

type Chunk struct {
	Size       uint
	Extensions [][2]string
}

var (
	ErrMalformedChunk = errors.New("malformed chunk")
	ErrMissingCRLF    = errors.New("CRLF delimiter not found")
)

// ChunkedReader decodes a chunked body.
//
// It never consumes bytes past the final CRLF of the body from a source that is an
// [iolib.UntilReader] or an [iolib.Unreader]; for other sources such bytes stay buffered.
type ChunkedReader struct {
	src   io.Reader
	ur    *iolib.UntilReader
	lines *http.LineReader

	chunk *Chunk
	read  uint // reset for each chunk
	crlf  []byte

	err       error // sticky
	onTrailer func([]http.Field)
}

var _ io.Reader = (*ChunkedReader)(nil)

func NewChunkedReader(r io.Reader) *ChunkedReader {
	ur, ok := r.(*iolib.UntilReader)
	if !ok {
		ur = iolib.NewUntilReader(r)
	}

	return &ChunkedReader{
		src:   r,
		ur:    ur,
		lines: http.NewLineReader(ur, http.DecodeOptions{MaxFieldLineLength: maxLineLength}),
		crlf:  make([]byte, 2),
	}
}

// SetOnTrailerReceived sets a callback receiving non-empty trailers on the last read.
func (cr *ChunkedReader) SetOnTrailerReceived(f func([]http.Field)) {
	cr.onTrailer = f
}

// LastChunk returns the chunk being read, nil between chunks.
func (cr *ChunkedReader) LastChunk() *Chunk {
	return cr.chunk
}

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if len(b) == 0 {
		return 0, nil
	}

	if cr.chunk == nil {
		if err := cr.decodeChunk(); err != nil {
			cr.err = errors.Wrap(err, "decoding chunk")
			return 0, cr.err
		}

		if cr.chunk.Size == 0 {
			// Last chunk.
			if err := cr.decodeTrailers(); err != nil {
				cr.err = errors.Wrap(err, "decoding trailer")
				return 0, cr.err
			}
			cr.giveBack()
			cr.err = io.EOF
			return 0, io.EOF
		}
	}

	remain := cr.chunk.Size - cr.read
	if uint(len(b)) > remain {
		b = b[:remain]
	}

	n, err := cr.ur.Read(b)
	cr.read += uint(n)
	if err != nil {
		cr.err = errors.Wrap(unexpected(err), "reading chunk data")
		return n, cr.err
	}

	if cr.read == cr.chunk.Size {
		if _, err := io.ReadFull(cr.ur, cr.crlf); err != nil {
			cr.err = errors.Wrap(unexpected(err), "reading chunk delimiter")
			return n, cr.err
		}

		if !bytes.Equal(cr.crlf, rule.CRLF) {
			cr.err = ErrMissingCRLF
			return n, cr.err
		}

		cr.chunk = nil
		cr.read = 0
	}

	return n, nil
}

func (cr *ChunkedReader) decodeChunk() error {
	line, err := cr.lines.ReadLine()
	if err != nil {
		return unexpected(err)
	}

	parts := bytes.Split(line, []byte{';'})

	sizeRaw := bytes.TrimFunc(parts[0], rule.IsWhitespace)
	chunkSize, err := decodeChunkSize(sizeRaw)
	if err != nil {
		return errors.Wrap(err, "decoding chunk size")
	}

	extensions := make([][2]string, 0)
	for _, part := range parts[1:] {
		k, v, _ := bytes.Cut(part, []byte{'='})
		// Trim BWS.
		k = bytes.TrimFunc(k, rule.IsWhitespace)
		v = bytes.TrimFunc(v, rule.IsWhitespace)

		extensions = append(extensions, [2]string{
			string(k),
			string(rule.Unquote(v)),
		})
	}

	cr.chunk = &Chunk{
		Size:       chunkSize,
		Extensions: extensions,
	}

	return nil
}

func decodeChunkSize(b []byte) (uint, error) {
	size, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedChunk, "chunk size %q", string(b))
	}
	return uint(size), nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	fields := make([]http.Field, 0)
	for {
		line, err := cr.lines.ReadLine()
		if err != nil {
			return errors.Wrap(unexpected(err), "reading line")
		}

		if len(line) == 0 {
			// Last field.
			break
		}

		field, err := http.ParseField(line)
		if err != nil {
			return errors.Wrap(err, "parsing field")
		}

		fields = append(fields, field)
	}

	if cr.onTrailer != nil && len(fields) > 0 {
		cr.onTrailer(fields)
	}

	return nil
}

// giveBack returns bytes read past the body to a source that can take them.
func (cr *ChunkedReader) giveBack() {
	if cr.src == io.Reader(cr.ur) || cr.ur.Buffered() == 0 {
		return
	}

	u, ok := cr.src.(iolib.Unreader)
	if !ok {
		return
	}

	rest := make([]byte, cr.ur.Buffered())
	n, _ := io.ReadFull(cr.ur, rest)
	u.Unread(rest[:n])
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ChunkedWriter encodes every Write as one chunk.
// Close writes the last chunk and trailers, then closes the underlying writer.
type ChunkedWriter struct {
	w   io.WriteCloser
	buf bytes.Buffer

	extensions   [][2]string
	sendTrailers func() []http.Field
	closed       bool
}

var _ io.WriteCloser = (*ChunkedWriter)(nil)

func NewChunkedWriter(w io.WriteCloser) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

// SetExtensions sets extension to the chunk.
// extension lives until [ChunkedWriter.Write].
func (cw *ChunkedWriter) SetExtensions(extensions [][2]string) {
	cw.extensions = extensions
}

// SetSendTrailers sets a callback supplying trailer fields on Close.
func (cw *ChunkedWriter) SetSendTrailers(f func() []http.Field) {
	cw.sendTrailers = f
}

func (cw *ChunkedWriter) Write(p []byte) (n int, err error) {
	if cw.closed {
		return 0, errors.New("write to closed chunked writer")
	}
	if len(p) == 0 {
		// We should ignore 0 length chunks since it means EOF.
		return 0, nil
	}

	chunk := Chunk{Size: uint(len(p)), Extensions: cw.extensions}
	cw.extensions = nil

	cw.buf.Reset()
	cw.encodeChunk(chunk)
	cw.buf.Write(p)
	cw.buf.Write(rule.CRLF)

	if _, err := iolib.WriteFull(cw.w, cw.buf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "writing chunk")
	}

	return len(p), nil
}

func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true

	cw.buf.Reset()
	cw.encodeChunk(Chunk{Size: 0, Extensions: cw.extensions})
	cw.encodeTrailers()

	if _, err := iolib.WriteFull(cw.w, cw.buf.Bytes()); err != nil {
		return errors.Wrap(err, "writing last chunk")
	}

	return cw.w.Close()
}

// encodeChunk writes the chunk size line.
func (cw *ChunkedWriter) encodeChunk(chunk Chunk) {
	cw.buf.WriteString(strconv.FormatUint(uint64(chunk.Size), 16))
	for _, ext := range chunk.Extensions {
		cw.buf.WriteByte(';')
		cw.buf.WriteString(ext[0])
		if ext[1] == "" {
			continue
		}
		cw.buf.WriteByte('=')
		if rule.IsValidToken(ext[1]) {
			cw.buf.WriteString(ext[1])
		} else {
			cw.buf.WriteString(rule.Quote(ext[1]))
		}
	}
	cw.buf.Write(rule.CRLF)
}

func (cw *ChunkedWriter) encodeTrailers() {
	if cw.sendTrailers != nil {
		for _, field := range cw.sendTrailers() {
			cw.buf.Write(field.Text())
			cw.buf.Write(rule.CRLF)
		}
	}
	cw.buf.Write(rule.CRLF)
}
