package wasm

import (
	"errors"
)

var (
	errOverflow = errors.New("integer representation too long")
	errEOF      = errors.New("unexpected end of input")
)

// readUleb reads an unsigned LEB128 integer of at most the given bit width.
func (r *reader) readUleb(bits uint) (uint64, error) {
	maxBytes := int((bits + 6) / 7)
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		if i == maxBytes-1 {
			if b&0x80 != 0 || uint64(b)>>(bits-shift) != 0 {
				return 0, errOverflow
			}
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readSleb reads a signed LEB128 integer of at most the given bit width.
func (r *reader) readSleb(bits uint) (int64, error) {
	maxBytes := int((bits + 6) / 7)
	var result int64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		if i == maxBytes-1 {
			if b&0x80 != 0 {
				return 0, errOverflow
			}
			// the unused high bits of the last byte must repeat the sign bit
			rem := bits - shift
			sign := (b >> (rem - 1)) & 1
			upper := (b & 0x7f) >> rem
			if (sign == 0 && upper != 0) || (sign == 1 && upper != 0x7f>>rem) {
				return 0, errOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

func (r *reader) readU32() (uint32, error) {
	v, err := r.readUleb(32)
	return uint32(v), err
}

func (r *reader) readS32() (int32, error) {
	v, err := r.readSleb(32)
	return int32(v), err
}

func (r *reader) readS64() (int64, error) {
	return r.readSleb(64)
}

func appendUleb(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func appendSleb(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		b = append(b, c)
		if done {
			return b
		}
	}
}

func appendU32(b []byte, v uint32) []byte {
	return appendUleb(b, uint64(v))
}
