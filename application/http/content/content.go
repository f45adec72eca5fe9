// Package content provides the compression content codings.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4.1
package content

import (
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/me7398/monarch/application/http/coding"
	"github.com/pkg/errors"
)

const (
	CodingGzip    = "gzip"
	CodingDeflate = "deflate"
	CodingZstd    = "zstd"
)

type coder struct {
	token     string
	newReader func(io.Reader) (io.ReadCloser, error)
	newWriter func(io.Writer) (io.WriteCloser, error)
}

var _ coding.Coder = coder{}

func (c coder) Token() string { return c.token }

// NewReader defers reading the stream header until the first Read.
// The returned reader is an io.Closer; closing it releases the decompressor.
func (c coder) NewReader(r io.Reader) io.Reader {
	return &lazyReader{src: r, open: c.newReader}
}

// NewWriter returns a writer whose Close flushes the compressor and then closes w.
func (c coder) NewWriter(w io.WriteCloser) io.WriteCloser {
	enc, err := c.newWriter(w)
	if err != nil {
		return &failedWriter{err: errors.Wrapf(err, "creating %s writer", c.token)}
	}
	return &closeBoth{WriteCloser: enc, next: w}
}

// NewGzip uses level for encoding; see [gzip.DefaultCompression].
func NewGzip(level int) coding.Coder {
	return coder{
		token: CodingGzip,
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, level)
		},
	}
}

// NewDeflate uses the zlib format, as "deflate" names in HTTP.
func NewDeflate(level int) coding.Coder {
	return coder{
		token: CodingDeflate,
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zlib.NewWriterLevel(w, level)
		},
	}
}

func NewZstd() coding.Coder {
	return coder{
		token: CodingZstd,
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		},
	}
}

var builtin = map[string]func() coding.Coder{
	CodingGzip:    func() coding.Coder { return NewGzip(gzip.DefaultCompression) },
	CodingDeflate: func() coding.Coder { return NewDeflate(zlib.DefaultCompression) },
	CodingZstd:    NewZstd,
}

// Lookup returns the built-in coder for a content coding name.
func Lookup(name string) (coding.Coder, bool) {
	f, ok := builtin[coding.Normalize(name)]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names lists the built-in content codings.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type lazyReader struct {
	src  io.Reader
	open func(io.Reader) (io.ReadCloser, error)

	r   io.ReadCloser
	err error
}

func (lr *lazyReader) Read(p []byte) (int, error) {
	if lr.r == nil && lr.err == nil {
		r, err := lr.open(lr.src)
		if err != nil {
			lr.err = errors.Wrap(err, "reading stream header")
			return 0, lr.err
		}
		lr.r = r
	}
	if lr.err != nil {
		return 0, lr.err
	}

	n, err := lr.r.Read(p)
	if err != nil {
		lr.err = err
		lr.release()
	}
	return n, err
}

func (lr *lazyReader) Close() error {
	if lr.err == nil {
		lr.err = errors.New("read after close")
	}
	return lr.release()
}

func (lr *lazyReader) release() error {
	if lr.r == nil {
		return nil
	}
	r := lr.r
	lr.r = nil
	return r.Close()
}

type closeBoth struct {
	io.WriteCloser
	next io.Closer
}

func (c *closeBoth) Close() error {
	if err := c.WriteCloser.Close(); err != nil {
		return errors.Wrap(err, "flushing encoder")
	}
	return c.next.Close()
}

type failedWriter struct{ err error }

func (f *failedWriter) Write([]byte) (int, error) { return 0, f.err }
func (f *failedWriter) Close() error              { return f.err }
