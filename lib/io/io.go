package iolib

import "io"

type nopWriteCloser struct{ io.Writer }

// NopWriteCloser returns w with a Close that does nothing.
func NopWriteCloser(w io.Writer) io.WriteCloser { return nopWriteCloser{w} }

func (nopWriteCloser) Close() error { return nil }

// WriteFull writes buf to w, retrying short writes, until it is all written or w fails.
func WriteFull(w io.Writer, buf []byte) (uint, error) {
	var total uint
	for total < uint(len(buf)) {
		n, err := w.Write(buf[total:])
		total += uint(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
