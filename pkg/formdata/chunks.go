package formdata

// Chunks walks the encoder ChunkSize bytes at a time:
//
//	it := enc.Chunks()
//	for it.Next() {
//		conn.Write(it.Bytes())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Chunks struct {
	e     *Encoder
	chunk []byte
	err   error
}

func (e *Encoder) Chunks() *Chunks {
	return &Chunks{e: e}
}

// Next loads the following chunk. It returns false once the encoder is
// finished and its buffer is empty, or after an error.
func (c *Chunks) Next() bool {
	if c.err != nil {
		return false
	}
	if c.e.finished && c.e.buf.Len() == 0 {
		c.chunk = nil
		return false
	}

	c.chunk, c.err = c.e.read(c.e.chunkSize)
	if c.err != nil {
		c.chunk = nil
		return false
	}
	return len(c.chunk) > 0
}

// Bytes returns the current chunk. It is overwritten by the next call to Next.
func (c *Chunks) Bytes() []byte {
	return c.chunk
}

func (c *Chunks) Err() error {
	return c.err
}
