package http

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/me7398/monarch/application/util/rule"
	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

var (
	Version1_0 = Version{1, 0}
	Version1_1 = Version{1, 1}
)

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	major, minor, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot seperator not found on version: %s", b)
	}

	ma, err1 := strconv.ParseUint(string(major), 10, 64)
	mi, err2 := strconv.ParseUint(string(minor), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(ma), uint(mi)}, nil
}

func (ver Version) Text() []byte {
	return []byte(ver.String())
}

func (ver Version) String() string {
	return "HTTP/" + strconv.FormatUint(uint64(ver[0]), 10) + "." + strconv.FormatUint(uint64(ver[1]), 10)
}

// Field is a single header field line.
type Field struct{ Name, Value string }

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", string(fieldLine))
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if len(name) == 0 || bytes.IndexAny(name[len(name)-1:], string(rule.OWS)) >= 0 {
		return Field{}, errors.New("field name is empty or has trailing whitespace")
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(rule.OWS))

	return Field{Name: string(name), Value: string(value)}, nil
}

func (f Field) Text() []byte {
	return []byte(f.Name + ": " + f.Value)
}

// Is reports whether the field is named name, ignoring case.
func (f Field) Is(name string) bool {
	return strings.EqualFold(f.Name, name)
}

type RequestLine struct {
	Method  string
	Target  string
	Version Version
}

func ParseRequestLine(line []byte) (RequestLine, error) {
	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 {
		return RequestLine{}, ErrMalformedRequestLine
	}

	method := string(parts[0])
	if !rule.IsValidToken(method) {
		return RequestLine{}, errors.Wrap(ErrMalformedRequestLine, "method is not a valid token")
	}

	target := string(parts[1])
	if len(target) == 0 {
		return RequestLine{}, errors.Wrap(ErrMalformedRequestLine, "request target should not be empty")
	}

	ver, err := ParseVersion(parts[2])
	if err != nil {
		return RequestLine{}, errors.Wrap(ErrMalformedRequestLine, err.Error())
	}

	return RequestLine{Method: method, Target: target, Version: ver}, nil
}

func (rl RequestLine) Text() []byte {
	return []byte(rl.Method + " " + rl.Target + " " + rl.Version.String())
}

type StatusLine struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
}

func ParseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, ErrMalformedStatusLine
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	code := string(parts[1])
	statusCode, err := strconv.ParseUint(code, 10, 64)
	if err != nil || len(code) != 3 {
		return StatusLine{}, errors.Wrapf(ErrMalformedStatusLine, "status code is malformed: %q", code)
	}

	// reason-phrase is optional.
	var reason string
	if len(parts) == 3 {
		reason = string(parts[2])
	}

	return StatusLine{Version: ver, StatusCode: uint(statusCode), ReasonPhrase: reason}, nil
}

func (sl StatusLine) Text() []byte {
	return []byte(sl.Version.String() + " " + strconv.FormatUint(uint64(sl.StatusCode), 10) + " " + sl.ReasonPhrase)
}
