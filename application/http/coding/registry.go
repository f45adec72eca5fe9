package coding

import (
	"slices"
	"strings"
)

type table struct {
	encoders map[string]Encoder
	decoders map[string]Decoder
}

func newTable() table {
	return table{
		encoders: make(map[string]Encoder),
		decoders: make(map[string]Decoder),
	}
}

// Registry maps tokens to coders, one table per [Namespace].
// Tokens are stored normalized; a later registration under the same token wins.
// It is not safe for concurrent mutation.
type Registry struct {
	tables [2]table
}

func NewRegistry() *Registry {
	return &Registry{tables: [2]table{newTable(), newTable()}}
}

func (r *Registry) table(ns Namespace) *table {
	return &r.tables[ns]
}

func (r *Registry) SetEncoder(ns Namespace, token string, enc Encoder) {
	r.table(ns).encoders[Normalize(token)] = enc
}

func (r *Registry) SetDecoder(ns Namespace, token string, dec Decoder) {
	r.table(ns).decoders[Normalize(token)] = dec
}

// Register stores c as both encoder and decoder under its token and the token's legacy alias.
func (r *Registry) Register(ns Namespace, c Coder) {
	token := Normalize(c.Token())
	for _, t := range []string{token, aliases[token]} {
		if t == "" {
			continue
		}
		r.SetEncoder(ns, t, c)
		r.SetDecoder(ns, t, c)
	}
}

// RemoveEncoder removes the encoder for token and returns it.
func (r *Registry) RemoveEncoder(ns Namespace, token string) (Encoder, bool) {
	t := r.table(ns)
	token = Normalize(token)
	enc, ok := t.encoders[token]
	delete(t.encoders, token)
	return enc, ok
}

// RemoveDecoder removes the decoder for token and returns it.
func (r *Registry) RemoveDecoder(ns Namespace, token string) (Decoder, bool) {
	t := r.table(ns)
	token = Normalize(token)
	dec, ok := t.decoders[token]
	delete(t.decoders, token)
	return dec, ok
}

// Encoder resolves the first token of a header value that has an encoder.
func (r *Registry) Encoder(ns Namespace, value string) (token string, enc Encoder, ok bool) {
	t := r.table(ns)
	for _, token := range Tokens(value) {
		if enc, ok := t.encoders[token]; ok {
			return token, enc, true
		}
	}
	return "", nil, false
}

// Decoder resolves the first token of a header value that has a decoder.
func (r *Registry) Decoder(ns Namespace, value string) (token string, dec Decoder, ok bool) {
	t := r.table(ns)
	for _, token := range Tokens(value) {
		if dec, ok := t.decoders[token]; ok {
			return token, dec, true
		}
	}
	return "", nil, false
}

// Accept lists decodable tokens of ns, sorted and comma separated,
// in the form of an Accept-Encoding or TE value.
func (r *Registry) Accept(ns Namespace) string {
	t := r.table(ns)
	if len(t.decoders) == 0 {
		return "identity"
	}

	tokens := make([]string, 0, len(t.decoders))
	for token := range t.decoders {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)

	return strings.Join(tokens, ", ")
}

// Clone copies the tables. Coders are shared.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for ns := range r.tables {
		for k, v := range r.tables[ns].encoders {
			c.tables[ns].encoders[k] = v
		}
		for k, v := range r.tables[ns].decoders {
			c.tables[ns].decoders[k] = v
		}
	}
	return c
}

// Tokens splits a comma separated header value into normalized tokens, skipping empty ones.
func Tokens(value string) []string {
	var tokens []string
	for _, part := range strings.Split(value, ",") {
		if token := Normalize(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func Normalize(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
