// Package formdata streams multipart/form-data bodies. Parts are rendered
// lazily into a small buffer as the caller reads, so file bodies are never
// held in memory as a whole and the total length is known before reading.
package formdata

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/charset"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

var crlf = []byte("\r\n")

type Options struct {
	// Boundary without the leading dashes. Empty picks a random one.
	Boundary string
	// Encoding used for text values and header blocks, utf-8 when empty.
	Encoding string
	// ChunkSize is the unit of Chunks and WriteTo and the largest single
	// body read.
	ChunkSize int
}

// Encoder is a single pass multipart/form-data body. It is not safe for
// concurrent use and the field values must not change while it is read.
type Encoder struct {
	boundaryValue string
	boundary      string
	delimiter     []byte
	closing       []byte
	encoding      *charset.Encoder
	chunkSize     int

	fields  []Field
	parts   []*Part
	next    int
	current *Part

	finished    bool
	length      int64
	lengthKnown bool
	buf         CursorBuffer
}

// New renders the headers of every field and prepares their bodies without
// reading them. The first delimiter is buffered right away.
func New(fields []Field, opts *Options) (*Encoder, error) {
	if opts == nil {
		opts = &Options{}
	}

	b := opts.Boundary
	if b == "" {
		b = ChooseBoundary()
	} else if err := ValidateBoundary(b); err != nil {
		return nil, err
	}

	name := opts.Encoding
	if name == "" {
		name = types.DEFAULT_ENCODING
	}
	enc, err := charset.Lookup(name)
	if err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = types.DEFAULT_CHUNK_SIZE
	}

	e := &Encoder{
		boundaryValue: b,
		boundary:      "--" + b,
		encoding:      enc,
		chunkSize:     chunkSize,
		fields:        fields,
		parts:         make([]*Part, 0, len(fields)),
	}
	if e.delimiter, err = enc.String(e.boundary + "\r\n"); err != nil {
		return nil, err
	}
	if e.closing, err = enc.String(e.boundary + "--\r\n"); err != nil {
		return nil, err
	}

	for _, f := range fields {
		p, err := partFromField(f.requestField(), enc, chunkSize)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		e.parts = append(e.parts, p)
	}

	if len(e.parts) == 0 {
		e.buf.Append(e.closing)
		e.finish()
		return e, nil
	}
	e.buf.Append(e.delimiter)
	e.current = e.nextPart()
	return e, nil
}

// Len is the exact number of bytes the encoder produces in total.
func (e *Encoder) Len() int64 {
	if !e.lengthKnown {
		var sum int64
		for _, p := range e.parts {
			sum += p.Len()
		}
		// every part is led by a delimiter and followed by CRLF, the
		// closing delimiter comes last
		n := int64(len(e.parts))
		e.length = sum + n*int64(len(e.delimiter)+len(crlf)) + int64(len(e.closing))
		e.lengthKnown = true
	}
	return e.length
}

func (e *Encoder) ContentLength() string {
	return strconv.FormatInt(e.Len(), 10)
}

func (e *Encoder) ContentType() string {
	return "multipart/form-data; boundary=" + e.boundaryValue
}

// Headers returns the Content-Type and Content-Length request headers.
func (e *Encoder) Headers() http.Header {
	h := make(http.Header, 2)
	h.Set("Content-Type", e.ContentType())
	h.Set("Content-Length", e.ContentLength())
	return h
}

// Boundary is the delimiter line without CRLF, dashes included.
func (e *Encoder) Boundary() string      { return e.boundary }
func (e *Encoder) BoundaryValue() string { return e.boundaryValue }
func (e *Encoder) Encoding() string      { return e.encoding.Name() }
func (e *Encoder) ChunkSize() int        { return e.chunkSize }
func (e *Encoder) Fields() []Field       { return e.fields }

// Finished reports whether the closing delimiter has been buffered. Bytes
// may still be waiting to be read.
func (e *Encoder) Finished() bool { return e.finished }

func (e *Encoder) String() string {
	names := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("formdata.Encoder{boundary: %s, fields: [%s]}", e.boundaryValue, strings.Join(names, " "))
}

// ReadChunk returns up to size bytes, everything left when size < 0. Once
// the body is drained it returns an empty slice and a nil error.
func (e *Encoder) ReadChunk(size int) ([]byte, error) {
	p, err := e.read(size)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, p...), nil
}

// Read implements io.Reader.
func (e *Encoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk, err := e.read(len(p))
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 && e.finished {
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

// WriteTo implements io.WriterTo, writing ChunkSize bytes at a time.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	var total int64
	it := e.Chunks()
	for it.Next() {
		n, err := w.Write(it.Bytes())
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n != len(it.Bytes()) {
			return total, io.ErrShortWrite
		}
	}
	return total, it.Err()
}

// Close closes every field value that is an io.Closer.
func (e *Encoder) Close() error {
	var errs []error
	for _, f := range e.fields {
		if c, ok := f.Value.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	e.buf.Reset()
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &closeErrors{errs}
	}
}

// read loads whatever is missing for size bytes and returns them without
// copying; the slice is valid until the next call.
func (e *Encoder) read(size int) ([]byte, error) {
	if !e.finished {
		deficit := int64(-1)
		if size >= 0 {
			deficit = int64(size - e.buf.Len())
			if deficit < 0 {
				deficit = 0
			}
		}
		if err := e.load(deficit); err != nil {
			return nil, err
		}
	}
	return e.buf.Next(size), nil
}

// load appends at least amount bytes to the buffer unless the body ends
// first. amount < 0 loads everything.
func (e *Encoder) load(amount int64) error {
	e.buf.Compact()
	unbounded := amount < 0

	for unbounded || amount > 0 {
		var written int64
		part := e.current
		if !part.HasRemaining() {
			written += int64(e.buf.Append(crlf))
			part = e.nextPart()
			if part == nil {
				e.buf.Append(e.closing)
				e.finish()
				return nil
			}
			written += int64(e.buf.Append(e.delimiter))
		}

		budget := amount
		if unbounded {
			budget = -1
		}
		n, err := part.fill(&e.buf, budget)
		if err != nil {
			return err
		}
		written += n

		if !unbounded {
			amount -= written
		}
	}
	return nil
}

func (e *Encoder) nextPart() *Part {
	if e.next >= len(e.parts) {
		return nil
	}
	p := e.parts[e.next]
	e.next++
	e.current = p
	logg.Dlog.Debugf("formdata: %s part %d/%d", e.boundaryValue, e.next, len(e.parts))
	return p
}

func (e *Encoder) finish() {
	e.finished = true
	logg.Dlog.Debugf("formdata: %s finished, %d parts", e.boundaryValue, len(e.parts))
}

type closeErrors struct {
	errs []error
}

func (e *closeErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formdata: %d errors while closing fields: ", len(e.errs))
	for i, err := range e.errs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%d]: %s", i, err)
	}
	return b.String()
}

func (e *closeErrors) Unwrap() []error {
	return e.errs
}
