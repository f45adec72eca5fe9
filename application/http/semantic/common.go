package semantic

import (
	"time"

	"github.com/pkg/errors"
)

type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

// imfFixDate is the preferred format, the others are obsolete but must be accepted.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.7
const imfFixDate = "Mon, 02 Jan 2006 15:04:05 GMT"

var dateLayouts = []string{imfFixDate, time.RFC850, time.ANSIC}

// ParseDate parses an HTTP-date. The result is in UTC.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.Errorf("invalid time format: %q", raw)
}

// FormatDate formats t as an IMF-fixdate.
func FormatDate(t time.Time) string {
	return t.UTC().Format(imfFixDate)
}
