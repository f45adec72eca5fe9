package webconn

import (
	"io"

	"github.com/me7398/monarch/application/http/coding"
	"github.com/me7398/monarch/application/http/transfer"
	iolib "github.com/me7398/monarch/lib/io"
	"github.com/pkg/errors"
)

const codingIdentity = "identity"

// declared reports whether value names any coding besides identity.
func declared(value string) bool {
	for _, token := range coding.Tokens(value) {
		if token != codingIdentity {
			return true
		}
	}
	return false
}

func (c *Conn) encoder(ns coding.Namespace, value string) (coding.Encoder, error) {
	token, enc, ok := c.codings.Encoder(ns, value)
	if !ok {
		if c.opts.StrictCodings && declared(value) {
			return nil, protocolError{errors.Errorf("no %s encoder for %q", ns, value)}
		}
		return nil, nil
	}
	c.logger.Debug("encoder resolved", "namespace", ns.String(), "token", token)
	return enc, nil
}

func (c *Conn) decoder(ns coding.Namespace, value string) (string, coding.Decoder, error) {
	token, dec, ok := c.codings.Decoder(ns, value)
	if !ok {
		if c.opts.StrictCodings && declared(value) {
			return "", nil, protocolError{errors.Errorf("no %s decoder for %q", ns, value)}
		}
		return "", nil, nil
	}
	c.logger.Debug("decoder resolved", "namespace", ns.String(), "token", token)
	return token, dec, nil
}

// encodedReader streams src encoded with the codings h declares.
// The transfer encoder sits nearest the wire.
func (c *Conn) encodedReader(src io.Reader, h Encodings) (io.Reader, error) {
	ce, err := c.encoder(coding.Content, h.ContentEncoding())
	if err != nil {
		return nil, err
	}
	te, err := c.encoder(coding.Transfer, h.TransferEncoding())
	if err != nil {
		return nil, err
	}

	src = sourceReader{r: src}
	if ce == nil && te == nil {
		return src, nil
	}

	chain := func(w io.WriteCloser) io.WriteCloser {
		if te != nil {
			w = te.NewWriter(w)
		}
		if ce != nil {
			w = ce.NewWriter(w)
		}
		return w
	}
	return iolib.NewMiddlewareReaderSize(src, chain, c.opts.BufferSize), nil
}

// decoded is a body being read off wire with its decoders applied.
type decoded struct {
	io.Reader

	limited *iolib.LimitedReader // nil when the length is unknown.
	closers []io.Closer
}

// decodedReader applies the codings h declares to wire.
// A non-negative length bounds the wire bytes unless the body is chunked.
func (c *Conn) decodedReader(wire io.Reader, h Encodings, length int64) (*decoded, error) {
	teToken, td, err := c.decoder(coding.Transfer, h.TransferEncoding())
	if err != nil {
		return nil, err
	}
	_, cd, err := c.decoder(coding.Content, h.ContentEncoding())
	if err != nil {
		return nil, err
	}

	// The chunked framing delimits the body by itself.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.4.1
	if teToken == transfer.CodingChunked {
		length = -1
	}

	if length == 0 {
		return &decoded{Reader: iolib.LimitReader(wire, 0)}, nil
	}

	d := &decoded{Reader: wire}
	if length > 0 {
		d.limited = &iolib.LimitedReader{R: wire, N: uint(length)}
		d.Reader = d.limited
	}
	if td != nil {
		d.wrap(td)
	}
	if cd != nil {
		d.wrap(cd)
	}
	return d, nil
}

func (d *decoded) wrap(dec coding.Decoder) {
	d.Reader = dec.NewReader(d.Reader)
	if closer, ok := d.Reader.(io.Closer); ok {
		d.closers = append(d.closers, closer)
	}
}

// close releases the decoders.
func (d *decoded) close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil && first == nil {
			first = errors.Wrap(err, "closing decoder")
		}
	}
	return first
}

// drain discards what the decoders left of a bounded body.
func (d *decoded) drain() error {
	if d.limited == nil {
		return nil
	}
	if _, err := io.Copy(io.Discard, d.limited); err != nil {
		return errors.Wrap(err, "draining body")
	}
	if d.limited.N > 0 {
		// The connection ended before the declared length.
		return wireError{errors.Wrapf(io.ErrUnexpectedEOF, "body ended %d bytes early", d.limited.N)}
	}
	return nil
}
