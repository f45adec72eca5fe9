package semantic

import (
	"bytes"
	"slices"
	"strings"

	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/util/rule"
)

// Headers is a case-insensitive multimap of header fields that remembers insertion order.
// The zero value is ready to use.
type Headers struct {
	names  []string // canonical, in first-insertion order.
	values map[string][]string
}

// HeadersFrom creates headers from raw fields.
// Repeated fields keep every value in order.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.3-1
func HeadersFrom(fields []http.Field) Headers {
	var h Headers
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	return h
}

// Fields returns every field line in order.
func (h *Headers) Fields() []http.Field {
	fields := make([]http.Field, 0, len(h.names))
	for _, name := range h.names {
		for _, v := range h.values[name] {
			fields = append(fields, http.Field{Name: name, Value: v})
		}
	}
	return fields
}

// Get assumes the field is a singleton field.
// Even if key has multiple values, it will only return the first element of values.
// For list-based field, use [Headers.Values] or [Headers.Tokens].
func (h *Headers) Get(key string) (value string, ok bool) {
	v, ok := h.values[canonical(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h *Headers) Values(key string) (values []string, ok bool) {
	values, ok = h.values[canonical(key)]
	return slices.Clone(values), ok
}

// Joined returns all values of a list-based field as one comma separated value.
func (h *Headers) Joined(key string) string {
	return strings.Join(h.values[canonical(key)], ", ")
}

// Tokens splits all values of a list-based field into its elements, unquoting them.
func (h *Headers) Tokens(key string) []string {
	tokens := make([]string, 0)
	for _, v := range h.values[canonical(key)] {
		tokens = append(tokens, tokenizeFieldValues([]byte(v))...)
	}
	return tokens
}

// Set assumes the field is a singleton field.
// It overwrites existing value instead of appending to it.
// For list-based field, use [Headers.Add].
func (h *Headers) Set(key, value string) {
	key = canonical(key)
	h.touch(key)
	h.values[key] = []string{value}
}

func (h *Headers) Add(key, value string) {
	key = canonical(key)
	h.touch(key)
	h.values[key] = append(h.values[key], value)
}

func (h *Headers) Del(key string) {
	key = canonical(key)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	h.names = slices.DeleteFunc(h.names, func(n string) bool { return n == key })
}

func (h *Headers) Len() int { return len(h.names) }

func (h *Headers) touch(key string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
	}
}

func canonical(s string) string {
	if rule.IsValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}

func tokenizeFieldValues(fieldValue []byte) []string {
	tokens := make([]string, 0)
	buf := bytes.NewBuffer(nil)

	parts := bytes.Split(fieldValue, []byte{','})

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.4-1
	quoted := false

	for _, part := range parts {
		if quoted {
			// Comma inside quote, let's write it again.
			buf.WriteByte(',')
		}

		for idx := 0; idx < len(part); idx++ {
			c := part[idx]
			if c == '"' {
				quoted = !quoted
			}

			buf.WriteByte(c)
		}

		if !quoted {
			tokens = addToken(tokens, buf.Bytes())
			buf.Reset()
		}
	}

	if buf.Len() > 0 {
		// Quote didn't end properly.
		// At least write the raw token.
		tokens = addToken(tokens, buf.Bytes())
	}

	return tokens
}

func addToken(tokens []string, token []byte) []string {
	token = bytes.TrimFunc(token, rule.IsWhitespace)
	token = rule.Unquote(token)
	if len(token) == 0 {
		// Don't append if it's empty.
		return tokens
	}
	return append(tokens, string(token))
}
