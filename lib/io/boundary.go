package iolib

import (
	"bytes"
	"errors"
	"io"
)

// ScanState is where a [BoundaryReader] stands.
type ScanState uint8

const (
	Scanning ScanState = iota
	Matched
	Truncated
)

func (s ScanState) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Matched:
		return "matched"
	case Truncated:
		return "truncated"
	}
	return "unknown"
}

var ErrTruncatedBoundary = errors.New("stream ended before any boundary")

// BoundaryReader delivers bytes from a source up to, but excluding,
// the first occurrence of any of its boundaries, and then reports io.EOF.
//
// Bytes that could still start a boundary are held back until they either
// complete one or are proven not to. The boundary completing earliest wins;
// when two complete at the same byte, the one given first wins.
//
// If the source ends before a match, the held bytes are delivered and reads
// fail with [ErrTruncatedBoundary].
//
// Bytes read past the match are handed back to the source when it implements
// [Unreader], otherwise they can be taken with [BoundaryReader.Buffered].
type BoundaryReader struct {
	src        io.Reader
	boundaries [][]byte
	starts     [256]bool

	state   ScanState
	reached int

	held []byte // a suffix of the scanned input that is a prefix of some boundary.
	in   []byte // not scanned yet.
	out  []byte // released, not delivered yet.

	chunk  []byte
	srcErr error
}

var _ Unreader = (*BoundaryReader)(nil)

// NewBoundaryReader panics when no boundary is given or one is empty.
func NewBoundaryReader(r io.Reader, boundaries ...[]byte) *BoundaryReader {
	if len(boundaries) == 0 {
		panic("iolib: no boundary given")
	}

	br := &BoundaryReader{
		src:     r,
		reached: -1,
		chunk:   make([]byte, 4096),
	}
	for _, b := range boundaries {
		if len(b) == 0 {
			panic("iolib: empty boundary")
		}
		br.boundaries = append(br.boundaries, bytes.Clone(b))
		br.starts[b[0]] = true
	}

	return br
}

func (br *BoundaryReader) State() ScanState { return br.state }

// Reached returns the index of the matched boundary, or -1 if none matched yet.
func (br *BoundaryReader) Reached() int { return br.reached }

// Buffered returns bytes read from the source past the match that
// could not be pushed back into it.
func (br *BoundaryReader) Buffered() []byte {
	if br.state != Matched {
		return nil
	}
	return br.in
}

// Unread puts delivered bytes back so they are read again.
func (br *BoundaryReader) Unread(p []byte) {
	if len(p) == 0 {
		return
	}

	if br.state != Scanning {
		br.out = append(bytes.Clone(p), br.out...)
		return
	}

	// Rescan everything not yet delivered as one run of input.
	in := make([]byte, 0, len(p)+len(br.out)+len(br.held)+len(br.in))
	in = append(in, p...)
	in = append(in, br.out...)
	in = append(in, br.held...)
	in = append(in, br.in...)

	br.in = in
	br.out = nil
	br.held = br.held[:0]
}

func (br *BoundaryReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(br.out) == 0 {
		switch br.state {
		case Matched:
			return 0, io.EOF
		case Truncated:
			return 0, ErrTruncatedBoundary
		}

		if len(br.in) > 0 {
			br.scan()
			continue
		}

		if br.srcErr != nil {
			if br.srcErr != io.EOF {
				return 0, br.srcErr
			}
			br.out = append(br.out, br.held...)
			br.held = br.held[:0]
			br.state = Truncated
			continue
		}

		n, err := br.src.Read(br.chunk)
		br.in = br.chunk[:n]
		br.srcErr = err
	}

	n = copy(p, br.out)
	br.out = br.out[n:]
	return n, nil
}

// scan consumes br.in until it is exhausted or a boundary matches.
func (br *BoundaryReader) scan() {
	for len(br.in) > 0 {
		if len(br.held) == 0 {
			i := 0
			for i < len(br.in) && !br.starts[br.in[i]] {
				i++
			}
			br.out = append(br.out, br.in[:i]...)
			br.in = br.in[i:]
			if len(br.in) == 0 {
				return
			}
		}

		br.held = append(br.held, br.in[0])
		br.in = br.in[1:]

		if idx := br.completed(); idx >= 0 {
			br.out = append(br.out, br.held[:len(br.held)-len(br.boundaries[idx])]...)
			br.held = br.held[:0]
			br.state = Matched
			br.reached = idx
			br.giveBack()
			return
		}

		i := 0
		for i < len(br.held) && !br.viable(br.held[i:]) {
			i++
		}
		if i > 0 {
			br.out = append(br.out, br.held[:i]...)
			br.held = append(br.held[:0], br.held[i:]...)
		}
	}
}

func (br *BoundaryReader) completed() int {
	for idx, b := range br.boundaries {
		if bytes.HasSuffix(br.held, b) {
			return idx
		}
	}
	return -1
}

func (br *BoundaryReader) viable(p []byte) bool {
	for _, b := range br.boundaries {
		if bytes.HasPrefix(b, p) {
			return true
		}
	}
	return false
}

func (br *BoundaryReader) giveBack() {
	if len(br.in) == 0 {
		return
	}
	if u, ok := br.src.(Unreader); ok {
		u.Unread(br.in)
		br.in = nil
		return
	}
	br.in = bytes.Clone(br.in)
}
