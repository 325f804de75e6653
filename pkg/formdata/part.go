package formdata

import (
	"io"

	"github.com/lambertxiao/go-formstream/pkg/charset"
	"github.com/lambertxiao/go-formstream/pkg/field"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

// consecutive empty reads tolerated before a body is considered stuck
const maxEmptyReads = 100

// Part is one rendered field: header block plus body. It is drained once.
type Part struct {
	header     []byte
	body       SizedSource
	headerSent bool
	size       int64
	chunkSize  int
}

func newPart(header []byte, body SizedSource, chunkSize int) *Part {
	if chunkSize <= 0 {
		chunkSize = types.DEFAULT_CHUNK_SIZE
	}
	return &Part{
		header:    header,
		body:      body,
		size:      int64(len(header)) + body.Len(),
		chunkSize: chunkSize,
	}
}

func partFromField(rf *field.RequestField, enc *charset.Encoder, chunkSize int) (*Part, error) {
	header, err := enc.String(rf.RenderHeaders())
	if err != nil {
		return nil, err
	}
	body, err := NewSource(rf.Data, enc)
	if err != nil {
		return nil, err
	}
	return newPart(header, body, chunkSize), nil
}

// Len is the full size of the part, fixed when it was built.
func (p *Part) Len() int64 {
	return p.size
}

// Remaining returns header and body bytes not yet handed to a buffer.
func (p *Part) Remaining() int64 {
	n := p.body.Len()
	if !p.headerSent {
		n += int64(len(p.header))
	}
	return n
}

func (p *Part) HasRemaining() bool {
	return p.Remaining() > 0
}

// fill appends the header (always whole) and then body bytes to buf until
// the body runs out or budget bytes were written. budget < 0 means no limit.
func (p *Part) fill(buf *CursorBuffer, budget int64) (int64, error) {
	var written int64
	if !p.headerSent {
		written += int64(buf.Append(p.header))
		p.headerSent = true
	}

	empty := 0
	for p.body.Len() > 0 && (budget < 0 || written < budget) {
		want := int64(p.chunkSize)
		if budget >= 0 && budget-written < want {
			want = budget - written
		}
		if left := p.body.Len(); left < want {
			want = left
		}

		n, err := buf.readFrom(p.body, int(want))
		written += int64(n)
		if err == io.EOF {
			if p.body.Len() > 0 {
				return written, io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return written, err
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return written, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return written, nil
}
