package formdata

import (
	"io"

	"github.com/lambertxiao/go-formstream/pkg/common"
)

// CursorBuffer appends at its logical end and is read from a cursor. The
// consumed prefix is dropped by Compact once it outgrows the unread bytes.
type CursorBuffer struct {
	buf []byte
	off int
}

// Len returns the number of unread bytes.
func (b *CursorBuffer) Len() int {
	return len(b.buf) - b.off
}

// Append copies p to the end of the buffer. The cursor does not move.
func (b *CursorBuffer) Append(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	b.grow(len(p))
	b.buf = append(b.buf, p...)
	return len(p)
}

// Next returns up to n unread bytes and advances the cursor past them, n < 0
// returns everything. The slice is only valid until the next mutation.
func (b *CursorBuffer) Next(n int) []byte {
	if n < 0 || n > b.Len() {
		n = b.Len()
	}
	p := b.buf[b.off : b.off+n]
	b.off += n
	return p
}

// Compact moves the unread bytes to the front when the consumed prefix is at
// least as large as them.
func (b *CursorBuffer) Compact() {
	if b.off == 0 {
		return
	}
	unread := b.Len()
	if b.off < unread {
		return
	}
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}

// Reset drops everything and hands the storage back to the pool.
func (b *CursorBuffer) Reset() {
	if b.buf != nil {
		common.PutData(b.buf[:cap(b.buf)])
	}
	b.buf = nil
	b.off = 0
}

// checkpoint captures the logical end and the cursor, the returned func puts
// both back.
func (b *CursorBuffer) checkpoint() func() {
	end, off := len(b.buf), b.off
	return func() {
		b.buf = b.buf[:end]
		b.off = off
	}
}

// readFrom does a single read of at most max bytes from r straight into the
// tail of the buffer. On a read error the buffer is left as it was.
func (b *CursorBuffer) readFrom(r io.Reader, max int) (n int, err error) {
	if max <= 0 {
		return 0, nil
	}

	restore := b.checkpoint()
	defer func() {
		if err != nil && err != io.EOF {
			restore()
			n = 0
		}
	}()

	b.grow(max)
	end := len(b.buf)
	b.buf = b.buf[:end+max]
	n, err = r.Read(b.buf[end:])
	if n < 0 || n > max {
		n = 0
	}
	b.buf = b.buf[:end+n]
	return n, err
}

func (b *CursorBuffer) grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}

	want := 2*cap(b.buf) + n
	data, err := common.GetData(int64(want))
	if err != nil {
		data = make([]byte, want)
	}
	nb := data[:len(b.buf)]
	copy(nb, b.buf)
	if b.buf != nil {
		common.PutData(b.buf[:cap(b.buf)])
	}
	b.buf = nb
}
