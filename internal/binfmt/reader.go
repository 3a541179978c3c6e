// Package binfmt reads exported function names out of object files without
// loading them.
package binfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrOutOfBounds is returned when a read would cross the end of the image.
var ErrOutOfBounds = errors.New("read out of bounds")

// Reader is a little-endian, bounds-checked view over an io.ReaderAt.
// Every read validates offset and length against Size before touching the
// underlying data.
type Reader struct {
	r    io.ReaderAt
	size int64
}

// NewReader wraps r. size is the number of readable bytes.
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{r: r, size: size}
}

func (r *Reader) Size() int64 { return r.size }

func (r *Reader) check(off int64, n int) error {
	if off < 0 || n < 0 || off > r.size || int64(n) > r.size-off {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfBounds, off, n, r.size)
	}
	return nil
}

// Bytes reads n bytes at off.
func (r *Reader) Bytes(off int64, n int) ([]byte, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) Uint16(off int64) (uint16, error) {
	b, err := r.Bytes(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) Uint32(off int64) (uint32, error) {
	b, err := r.Bytes(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// maxNameLen bounds CString so a corrupt image cannot make us read the
// whole file looking for a terminator.
const maxNameLen = 4096

// CString reads a NUL-terminated string starting at off.
func (r *Reader) CString(off int64) (string, error) {
	if err := r.check(off, 0); err != nil {
		return "", err
	}
	n := maxNameLen
	if rest := r.size - off; rest < int64(n) {
		n = int(rest)
	}
	b, err := r.Bytes(off, n)
	if err != nil {
		return "", err
	}
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", ErrOutOfBounds, off)
	}
	return string(b[:end]), nil
}
