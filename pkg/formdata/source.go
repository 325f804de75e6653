package formdata

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/charset"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

// SizedSource is a part body that knows how many bytes it has left.
type SizedSource interface {
	io.Reader
	// Len returns the number of bytes not yet read.
	Len() int64
}

// Sized declares that r yields exactly n bytes. Reads past n are cut off and
// an early end of r is reported as io.ErrUnexpectedEOF.
func Sized(r io.Reader, n int64) SizedSource {
	return &readerSource{r: r, remaining: n}
}

// NewSource resolves a field value into a SizedSource once, up front.
// Strings are encoded with enc before their length is taken.
func NewSource(v interface{}, enc *charset.Encoder) (SizedSource, error) {
	switch v := v.(type) {
	case SizedSource:
		return v, nil
	case []byte:
		return newBytesSource(v), nil
	case string:
		b, err := enc.String(v)
		if err != nil {
			return nil, err
		}
		return newBytesSource(b), nil
	case *os.File:
		return newFileSource(v)
	case *bytes.Reader:
		return &lenSource{r: v}, nil
	case *bytes.Buffer:
		return &lenSource{r: v}, nil
	case *strings.Reader:
		return &lenSource{r: v}, nil
	case io.Reader:
		return nil, errors.Wrapf(types.ErrSizeUnavailable, "%T has no length, wrap it with Sized", v)
	case nil:
		return nil, errors.Wrap(types.ErrUnsupportedFieldShape, "nil value")
	default:
		return nil, errors.Wrapf(types.ErrUnsupportedFieldShape, "value of type %T", v)
	}
}

// in-memory bytes
type bytesSource struct {
	data []byte
	off  int
}

func newBytesSource(b []byte) SizedSource {
	if len(b) == 0 {
		return types.DefaultNullBuf
	}
	return &bytesSource{data: b}
}

func (s *bytesSource) Len() int64 {
	return int64(len(s.data) - s.off)
}

func (s *bytesSource) Read(p []byte) (int, error) {
	if s.off >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.off:])
	s.off += n
	return n, nil
}

// open file; the size is taken from stat once and the offset the handle was
// already at counts as consumed
type fileSource struct {
	f    *os.File
	size int64
	pos  int64
}

func newFileSource(f *os.File) (SizedSource, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(types.ErrSizeUnavailable, "stat %s: %v", f.Name(), err)
	}
	if !fi.Mode().IsRegular() {
		return nil, errors.Wrapf(types.ErrSizeUnavailable, "%s is not a regular file", f.Name())
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		pos = 0
	}
	return &fileSource{f: f, size: fi.Size(), pos: pos}, nil
}

func (s *fileSource) Len() int64 {
	if s.pos >= s.size {
		return 0
	}
	return s.size - s.pos
}

func (s *fileSource) Read(p []byte) (int, error) {
	left := s.Len()
	if left == 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > left {
		p = p[:left]
	}
	n, err := s.f.Read(p)
	s.pos += int64(n)
	if err == io.EOF && s.Len() > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

type lenReader interface {
	io.Reader
	Len() int
}

// bytes.Reader, bytes.Buffer and strings.Reader track what is left themselves
type lenSource struct {
	r lenReader
}

func (s *lenSource) Len() int64 {
	return int64(s.r.Len())
}

func (s *lenSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

type readerSource struct {
	r         io.Reader
	remaining int64
}

func (s *readerSource) Len() int64 {
	return s.remaining
}

func (s *readerSource) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	if err == io.EOF && s.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}
