package semantic

import (
	"mime"

	"github.com/me7398/monarch/application/http"
	"github.com/pkg/errors"
)

// BodyPartHeader holds the fields of one part in a multipart body. It has no start line.
type BodyPartHeader struct {
	Entity
}

func (b *BodyPartHeader) Parse(text string) error {
	_, fields, err := http.DecodeHeader(text, parseOptions, false)
	if err != nil {
		return errors.Wrap(err, "decoding body part header")
	}

	*b = BodyPartHeader{Entity{HeadersFrom(fields)}}
	return nil
}

func (b *BodyPartHeader) String() string {
	return http.EncodeHeader(nil, b.Fields(), http.DefaultEncodeOptions)
}

// Disposition parses Content-Disposition.
// Reference: https://datatracker.ietf.org/doc/html/rfc7578#section-4.2
func (b *BodyPartHeader) Disposition() (disposition string, params map[string]string, err error) {
	v, ok := b.Get("Content-Disposition")
	if !ok {
		return "", nil, errors.New("no Content-Disposition")
	}

	disposition, params, err = mime.ParseMediaType(v)
	if err != nil {
		return "", nil, errors.Wrap(err, "parsing Content-Disposition")
	}
	return disposition, params, nil
}

// SetFormData marks the part as the form field name, optionally carrying a file name.
func (b *BodyPartHeader) SetFormData(name, filename string) {
	params := map[string]string{"name": name}
	if filename != "" {
		params["filename"] = filename
	}
	b.Set("Content-Disposition", mime.FormatMediaType("form-data", params))
}
