// Package ctr decrypts AES counter-mode byte streams addressed by absolute
// offset, so chunks arriving in any size can be decrypted independently.
package ctr

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// BlockSize is the AES block size. The counter advances once per block.
const BlockSize = aes.BlockSize

var (
	// ErrInvalidKey is returned for key material that is not a valid AES key.
	ErrInvalidKey = errors.New("invalid decryption key")
	// ErrInvalidCounter is returned for a counter base that is not one block long.
	ErrInvalidCounter = errors.New("invalid counter base")
)

// Cipher holds a key and a counter base.
// It is safe for concurrent use: every call derives its own keystream.
type Cipher struct {
	block cipher.Block
	base  [BlockSize]byte
}

// New creates a Cipher from a raw 16, 24 or 32 byte key and a 16 byte
// counter base.
func New(key, counterBase []byte) (*Cipher, error) {
	if len(counterBase) != BlockSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidCounter, len(counterBase), BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	c := &Cipher{block: block}
	copy(c.base[:], counterBase)
	return c, nil
}

// FromHex parses hex-encoded key and counter base.
func FromHex(keyHex, counterBaseHex string) (*Cipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	base, err := hex.DecodeString(strings.TrimSpace(counterBaseHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCounter, err)
	}
	return New(key, base)
}

// CounterAt returns the counter block used for the block containing offset:
// base + offset/BlockSize as a big-endian 128-bit integer, wrapping.
func (c *Cipher) CounterAt(offset int64) [BlockSize]byte {
	counter := c.base
	addBlocks(&counter, uint64(offset)/BlockSize) //nolint:gosec // offsets are non-negative
	return counter
}

// XORAt xors src with the keystream starting at the absolute stream
// offset and writes the result to dst. dst and src may overlap entirely.
// Encryption and decryption are the same operation.
func (c *Cipher) XORAt(dst, src []byte, offset int64) {
	if offset < 0 {
		panic("ctr: negative offset")
	}
	iv := c.CounterAt(offset)
	stream := cipher.NewCTR(c.block, iv[:])

	// Discard the part of the keystream before offset inside its block.
	if skip := int(offset % BlockSize); skip > 0 {
		var pad [BlockSize]byte
		stream.XORKeyStream(pad[:skip], pad[:skip])
	}
	stream.XORKeyStream(dst, src)
}

func addBlocks(counter *[BlockSize]byte, n uint64) {
	carry := n
	for i := BlockSize - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(counter[i]) + (carry & 0xff)
		counter[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
}
