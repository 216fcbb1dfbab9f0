// Package crypto models the cryptographic primitives of the protocol for
// simulation purposes. Signatures are (signer, message-digest) tuples and
// verification is equality checking; only hashing is real. Verification cost
// is accounted for separately by the protocol's timing model.
package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a Hash in bytes.
const HashSize = 32

// Hash is a 32-byte BLAKE2b digest. The zero value is the null hash used by
// the genesis block.
type Hash [HashSize]byte

// HashData returns the BLAKE2b-256 hash of data.
func HashData(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return h.Hex()[:8]
}

// Hasher builds a hash incrementally from multiple inputs.
type Hasher struct {
	buf []byte
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Write appends data to the hasher input.
func (h *Hasher) Write(data []byte) *Hasher {
	h.buf = append(h.buf, data...)
	return h
}

// WriteUint32 appends a big-endian uint32 to the hasher input.
func (h *Hasher) WriteUint32(v uint32) *Hasher {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return h.Write(b[:])
}

// WriteUint64 appends a big-endian uint64 to the hasher input.
func (h *Hasher) WriteUint64(v uint64) *Hasher {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return h.Write(b[:])
}

// WriteUint16 appends a big-endian uint16 to the hasher input.
func (h *Hasher) WriteUint16(v uint16) *Hasher {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return h.Write(b[:])
}

// Sum returns the hash of everything written so far.
func (h *Hasher) Sum() Hash {
	return HashData(h.buf)
}
