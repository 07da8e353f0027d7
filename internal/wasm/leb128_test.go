package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUleb(t *testing.T) {
	cases := map[string]struct {
		in   []byte
		bits uint
		want uint64
		err  bool
	}{
		"zero":            {in: []byte{0x00}, bits: 32, want: 0},
		"one byte max":    {in: []byte{0x7f}, bits: 32, want: 127},
		"two bytes":       {in: []byte{0x80, 0x01}, bits: 32, want: 128},
		"max u32":         {in: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, bits: 32, want: math.MaxUint32},
		"u32 unused bits": {in: []byte{0xff, 0xff, 0xff, 0xff, 0x1f}, bits: 32, err: true},
		"u32 too long":    {in: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, bits: 32, err: true},
		"padded zero":     {in: []byte{0x80, 0x80, 0x00}, bits: 32, want: 0},
		"truncated":       {in: []byte{0x80}, bits: 32, err: true},
		"max u64":         {in: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, bits: 64, want: math.MaxUint64},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := newReader(tc.in, 0).readUleb(tc.bits)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadSleb(t *testing.T) {
	cases := map[string]struct {
		in   []byte
		bits uint
		want int64
		err  bool
	}{
		"minus one":        {in: []byte{0x7f}, bits: 32, want: -1},
		"minus 128":        {in: []byte{0x80, 0x7f}, bits: 32, want: -128},
		"63":               {in: []byte{0x3f}, bits: 32, want: 63},
		"64":               {in: []byte{0xc0, 0x00}, bits: 32, want: 64},
		"min i32":          {in: []byte{0x80, 0x80, 0x80, 0x80, 0x78}, bits: 32, want: math.MinInt32},
		"max i32":          {in: []byte{0xff, 0xff, 0xff, 0xff, 0x07}, bits: 32, want: math.MaxInt32},
		"i32 bad sign":     {in: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, bits: 32, err: true},
		"i32 bad negative": {in: []byte{0x80, 0x80, 0x80, 0x80, 0x70}, bits: 32, err: true},
		"min i64":          {in: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}, bits: 64, want: math.MinInt64},
		"i64 too long":     {in: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, bits: 64, err: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := newReader(tc.in, 0).readSleb(tc.bits)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAppendLebRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, 64, -64, -65, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64} {
		got, err := newReader(appendSleb(nil, v), 0).readSleb(64)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, v := range []uint64{0, 1, 127, 128, math.MaxUint32, math.MaxUint64} {
		got, err := newReader(appendUleb(nil, v), 0).readUleb(64)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
