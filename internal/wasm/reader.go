package wasm

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/aspect-vm/wasmmeter/types"
)

// reader walks a byte slice and keeps track of the current position so that
// errors can point at the offending byte.
type reader struct {
	buf []byte
	pos int
	// base is the absolute offset of buf[0] in the module.
	base int
}

func newReader(buf []byte, base int) *reader {
	return &reader{buf: buf, base: base}
}

// offset returns the absolute position in the module.
func (r *reader) offset() int {
	return r.base + r.pos
}

func (r *reader) eof() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) peekByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errEOF
	}
	return r.buf[r.pos], nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.pos {
		return nil, errEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readU32LE() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readU64LE() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readName() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.errorf("name is not valid UTF-8")
	}
	return string(b), nil
}

// sub returns a reader over the next n bytes and advances past them.
func (r *reader) sub(n uint32) (*reader, error) {
	start := r.offset()
	b, err := r.readN(int(n))
	if err != nil {
		return nil, err
	}
	return newReader(b, start), nil
}

func (r *reader) errorf(format string, args ...interface{}) error {
	return formatErrorf(r.offset(), format, args...)
}

// wrap turns low level read errors into a FormatError at the current offset
// and passes typed errors through untouched.
func (r *reader) wrap(err error, what string) error {
	switch err.(type) {
	case nil:
		return nil
	case types.FormatError, types.UnsupportedFeatureError:
		return err
	}
	return formatErrorf(r.offset(), "%s: %v", what, err)
}

// readVector reads a length prefixed vector, calling fn once per element.
func readVector[T any](r *reader, what string, fn func(*reader) (T, error)) ([]T, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, r.wrap(err, what+" count")
	}
	// every element takes at least one byte
	if int(n) > len(r.buf)-r.pos {
		return nil, r.errorf("%s count %d exceeds remaining input", what, n)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := fn(r)
		if err != nil {
			return nil, r.wrap(err, what)
		}
		out = append(out, v)
	}
	return out, nil
}
