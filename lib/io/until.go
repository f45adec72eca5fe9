package iolib

import (
	"bytes"
	"errors"
	"io"
)

// Unreader is a reader that accepts bytes back in front of its remaining input.
type Unreader interface {
	io.Reader
	Unread(p []byte)
}

// UntilReader reads up to a delimiter without losing what it read past it.
type UntilReader struct {
	r io.Reader

	pending []byte // delivered before r.
}

var _ Unreader = (*UntilReader)(nil)

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if len(ur.pending) > 0 {
		n = copy(p, ur.pending)
		ur.pending = ur.pending[n:]
		return n, nil
	}

	return ur.r.Read(p)
}

// Unread pushes p back so the next reads return it first. p is copied.
func (ur *UntilReader) Unread(p []byte) {
	if len(p) == 0 {
		return
	}
	ur.pending = append(bytes.Clone(p), ur.pending...)
}

// Buffered reports how many bytes are waiting in front of the underlying reader.
func (ur *UntilReader) Buffered() int { return len(ur.pending) }

var ErrZeroLenDelim = errors.New("delim has zero length")

// ReadUntil returns everything up to and including delim.
// If the underlying reader fails first, the bytes read so far are returned with the error.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	acc := ur.pending
	ur.pending = nil

	var (
		temp    = make([]byte, 1024)
		from    = 0
		readErr error
	)

	for {
		if idx := bytes.Index(acc[from:], delim); idx >= 0 {
			end := from + idx + len(delim)
			ur.Unread(acc[end:])
			return acc[:end:end], nil
		}

		if readErr != nil {
			return acc, readErr
		}

		// The delim may straddle the previous and the next chunk.
		from = max(0, len(acc)-len(delim)+1)

		n, err := ur.r.Read(temp)
		acc = append(acc, temp[:n]...)
		readErr = err
	}
}

// ReadUntilLimit is ReadUntil that reads at most limit bytes from the underlying reader.
// Zero means no limit.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if limit > 0 {
		r := ur.r
		ur.r = LimitReader(r, limit)
		defer func() { ur.r = r }() // restore underlying reader.
	}

	return ur.ReadUntil(delim)
}
