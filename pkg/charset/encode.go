// Package charset encodes text field values and header blocks into the
// character set a multipart body is declared in.
package charset

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

// Encoder converts UTF-8 text into a target character set.
type Encoder struct {
	name string
	enc  encoding.Encoding // nil means UTF-8 pass-through
}

// asciiProbe holds the bytes delimiters and header names are made of. They
// must come out of the charset unchanged.
const asciiProbe = "\r\n-- \"';:=/.,?()+_" +
	"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Lookup resolves an IANA charset name. An empty name selects UTF-8. Only
// charsets that leave ASCII untouched are accepted.
func Lookup(name string) (*Encoder, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = types.DEFAULT_ENCODING
	}

	switch name {
	case "utf-8", "utf8":
		return &Encoder{name: "utf-8"}, nil
	case "latin1", "latin-1":
		return &Encoder{name: name, enc: charmap.ISO8859_1}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.Wrapf(types.ErrUnknownEncoding, "%q", name)
	}
	if enc == nil {
		// ianaindex has no transformer for UTF-8 and a few others
		return nil, errors.Wrapf(types.ErrUnknownEncoding, "%q has no encoder", name)
	}
	out, err := enc.NewEncoder().Bytes([]byte(asciiProbe))
	if err != nil || !bytes.Equal(out, []byte(asciiProbe)) {
		return nil, errors.Wrapf(types.ErrUnknownEncoding, "%q is not ASCII compatible", name)
	}
	return &Encoder{name: name, enc: enc}, nil
}

// Name returns the normalized charset name.
func (e *Encoder) Name() string {
	return e.name
}

// String encodes s. Characters the charset cannot represent are an error.
func (e *Encoder) String(s string) ([]byte, error) {
	if e.enc == nil {
		return []byte(s), nil
	}
	out, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "encode to %s", e.name)
	}
	return out, nil
}
