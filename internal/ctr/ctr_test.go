package ctr

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NIST SP 800-38A, F.5.1 CTR-AES128.Encrypt.
const (
	nistKey     = "2b7e151628aed2a6abf7158809cf4f3c"
	nistCounter = "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff"
	nistPlain   = "6bc1bee22e409f96e93d7e117393172a" + "ae2d8a571e03ac9c9eb76fac45af8e51"
	nistCipher  = "874d6191b620e3261bef6864990db6ce" + "9806f66b7970fdff8617187bb9fffdff"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestXORAt_KnownVector(t *testing.T) {
	c, err := FromHex(nistKey, nistCounter)
	require.NoError(t, err)

	plain := mustHex(t, nistPlain)
	got := make([]byte, len(plain))
	c.XORAt(got, plain, 0)

	assert.Equal(t, nistCipher, hex.EncodeToString(got))
}

func TestXORAt_SecondBlockByOffset(t *testing.T) {
	c, err := FromHex(nistKey, nistCounter)
	require.NoError(t, err)

	ct := mustHex(t, nistCipher)
	second := ct[16:]
	got := make([]byte, len(second))
	c.XORAt(got, second, 16)

	assert.Equal(t, nistPlain[32:], hex.EncodeToString(got))
}

func TestXORAt_RoundTrip(t *testing.T) {
	c, err := FromHex(nistKey, nistCounter)
	require.NoError(t, err)

	original := bytes.Repeat([]byte("encrypted audio payload "), 100)
	buf := append([]byte(nil), original...)

	c.XORAt(buf, buf, 37)
	assert.NotEqual(t, original, buf)
	c.XORAt(buf, buf, 37)
	assert.Equal(t, original, buf)
}

func TestXORAt_ChunkedMatchesContiguous(t *testing.T) {
	c, err := FromHex(nistKey, nistCounter)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(rng.IntN(256))
	}

	want := make([]byte, len(data))
	c.XORAt(want, data, 0)

	got := append([]byte(nil), data...)
	var offset int64
	for offset < int64(len(got)) {
		n := int64(1 + rng.IntN(777))
		end := min(offset+n, int64(len(got)))
		chunk := got[offset:end]
		c.XORAt(chunk, chunk, offset)
		offset = end
	}

	assert.Equal(t, want, got)
}

func TestCounterAt(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		offset int64
		want   string
	}{
		{
			name:   "zero offset is base",
			base:   "000102030405060708090a0b0c0d0e0f",
			offset: 0,
			want:   "000102030405060708090a0b0c0d0e0f",
		},
		{
			name:   "offset inside first block",
			base:   "000102030405060708090a0b0c0d0e0f",
			offset: 15,
			want:   "000102030405060708090a0b0c0d0e0f",
		},
		{
			name:   "one block",
			base:   "000102030405060708090a0b0c0d0e0f",
			offset: 16,
			want:   "000102030405060708090a0b0c0d0e10",
		},
		{
			name:   "carry across bytes",
			base:   "000000000000000000000000000000ff",
			offset: 16,
			want:   "00000000000000000000000000000100",
		},
		{
			name:   "large offset",
			base:   "00000000000000000000000000000000",
			offset: 16 * 0x10203,
			want:   "00000000000000000000000000010203",
		},
		{
			name:   "wraps at 128 bits",
			base:   "ffffffffffffffffffffffffffffffff",
			offset: 16,
			want:   "00000000000000000000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(make([]byte, 16), mustHex(t, tt.base))
			require.NoError(t, err)

			got := c.CounterAt(tt.offset)
			assert.Equal(t, tt.want, hex.EncodeToString(got[:]))
		})
	}
}

func TestFromHex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		counter string
		want    error
	}{
		{"bad key hex", "zz", nistCounter, ErrInvalidKey},
		{"short key", "00112233", nistCounter, ErrInvalidKey},
		{"bad counter hex", nistKey, "xyz", ErrInvalidCounter},
		{"short counter", nistKey, "0011", ErrInvalidCounter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromHex(tt.key, tt.counter)
			if !errors.Is(err, tt.want) {
				t.Errorf("FromHex() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFromHex_AcceptsAllKeySizes(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		key := hex.EncodeToString(make([]byte, size))
		if _, err := FromHex(key, nistCounter); err != nil {
			t.Errorf("FromHex() with %d byte key: %v", size, err)
		}
	}
}
