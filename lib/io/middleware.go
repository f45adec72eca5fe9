package iolib

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// MiddlewareReader turns a writer-style transformation into a reader:
// bytes read from src are pushed through the middleware and its output is read back.
// The middleware is closed once src reaches EOF so it can flush trailing output.
type MiddlewareReader struct {
	src   io.Reader
	chunk []byte

	buf  bytes.Buffer
	bufw io.WriteCloser

	err error // sticky; io.EOF once the middleware was closed.
}

func NewMiddlewareReader(
	src io.Reader, middleware func(io.WriteCloser) io.WriteCloser,
) *MiddlewareReader {
	return NewMiddlewareReaderSize(src, middleware, 4096)
}

func NewMiddlewareReaderSize(
	src io.Reader, middleware func(io.WriteCloser) io.WriteCloser, size int,
) *MiddlewareReader {
	mr := &MiddlewareReader{
		src:   src,
		chunk: make([]byte, size),
	}
	mr.bufw = middleware(NopWriteCloser(&mr.buf))
	return mr
}

func (mr *MiddlewareReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	for mr.buf.Len() == 0 {
		if mr.err != nil {
			return 0, mr.err
		}
		mr.err = mr.pump()
	}

	return mr.buf.Read(p)
}

func (mr *MiddlewareReader) pump() error {
	n, err := mr.src.Read(mr.chunk)
	if n > 0 {
		if _, werr := WriteFull(mr.bufw, mr.chunk[:n]); werr != nil {
			return errors.Wrap(werr, "writing to middleware")
		}
	}

	switch {
	case err == io.EOF:
		if cerr := mr.bufw.Close(); cerr != nil {
			return errors.Wrap(cerr, "closing middleware")
		}
		return io.EOF
	case err != nil:
		return errors.Wrap(err, "reading from source")
	}

	return nil
}
