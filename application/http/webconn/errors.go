package webconn

import (
	"io"

	iolib "github.com/me7398/monarch/lib/io"
	"github.com/pkg/errors"
)

// Kinds of failures. Every error returned by [Conn] matches exactly one of them with errors.Is.
var (
	ErrTransport          = errors.New("transport failure")
	ErrProtocol           = errors.New("protocol violation")
	ErrTruncatedMultipart = errors.New("multipart body truncated")
)

// Error is the failure of one [Conn] operation.
type Error struct {
	Op   string
	Kind error

	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.cause.Error()
}

func (e *Error) Is(target error) bool { return target == e.Kind }
func (e *Error) Unwrap() error        { return e.cause }
func (e *Error) Cause() error         { return e.cause }

// Markers attached where an error enters the pipeline, so it can be classified at the top.
type (
	wireError     struct{ error }
	sourceError   struct{ error }
	sinkError     struct{ error }
	protocolError struct{ error }
)

func (e wireError) Unwrap() error     { return e.error }
func (e sourceError) Unwrap() error   { return e.error }
func (e sinkError) Unwrap() error     { return e.error }
func (e protocolError) Unwrap() error { return e.error }

// classify picks the kind of err. fallback is used for errors raised by coders,
// including a coder running out of input early.
func classify(err, fallback error) error {
	switch {
	case errors.Is(err, iolib.ErrTruncatedBoundary):
		return ErrTruncatedMultipart
	case errors.As(err, new(protocolError)):
		return ErrProtocol
	case errors.As(err, new(wireError)),
		errors.As(err, new(sourceError)),
		errors.As(err, new(sinkError)):
		return ErrTransport
	}
	return fallback
}

func kindLabel(kind error) string {
	switch kind {
	case ErrTransport:
		return "transport"
	case ErrProtocol:
		return "protocol"
	case ErrTruncatedMultipart:
		return "truncated"
	}
	return "unknown"
}

type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = sourceError{errors.Wrap(err, "reading body source")}
	}
	return n, err
}

type sinkWriter struct{ w io.Writer }

func (s sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		err = sinkError{errors.Wrap(err, "writing body sink")}
	}
	return n, err
}
