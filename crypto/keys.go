package crypto

import (
	"encoding/binary"
	"fmt"
)

// PublicKey identifies a validator. Keys are derived deterministically from a
// small integer identity, which keeps leader election and signature checks
// reproducible across runs.
type PublicKey struct {
	id uint64
}

// Bytes returns the big-endian byte representation of the key.
func (pub PublicKey) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], pub.id)
	return b[:]
}

func (pub PublicKey) String() string {
	return fmt.Sprintf("PublicKey(%d)", pub.id)
}

// SecretKey is the signing half of a key pair.
type SecretKey struct {
	id uint64
}

// Sign produces a signature over the given message digest.
func (sec SecretKey) Sign(msg Hash) Signature {
	return Signature{
		signer:  PublicKey{id: sec.id},
		message: msg,
	}
}

// Public returns the public key corresponding to this secret key.
func (sec SecretKey) Public() PublicKey {
	return PublicKey{id: sec.id}
}

// KeyPair bundles the keys of one validator.
type KeyPair struct {
	id uint64
}

// KeyPairFromID derives the key pair for a validator identity.
func KeyPairFromID(id uint64) KeyPair {
	return KeyPair{id: id}
}

// PublicKey returns the public half of the pair.
func (kp KeyPair) PublicKey() PublicKey {
	return PublicKey{id: kp.id}
}

// SecretKey returns the signing half of the pair.
func (kp KeyPair) SecretKey() SecretKey {
	return SecretKey{id: kp.id}
}
