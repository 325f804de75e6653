package types

import "io"

// NullBuf is an empty body: it has no bytes left and every read reports io.EOF.
type NullBuf struct{}

func (b NullBuf) Read(p []byte) (n int, err error) {
	return 0, io.EOF
}

func (b NullBuf) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

func (b NullBuf) Len() int64 {
	return 0
}

var DefaultNullBuf = NullBuf{}
