package crypto

import (
	"fmt"
	"sort"
)

// Signature is a simulated signature: the signer's identity plus the digest of
// the signed message. Verification checks both for equality.
type Signature struct {
	signer  PublicKey
	message Hash
}

// Signer returns the public key that produced the signature.
func (s Signature) Signer() PublicKey { return s.signer }

// Verify reports whether s is a valid signature by pub over msg.
func (s Signature) Verify(pub PublicKey, msg Hash) bool {
	return s.signer == pub && s.message == msg
}

// Hash returns a deterministic digest of the signature itself. The protocol
// uses this to derive randomness from block seeds.
func (s Signature) Hash() Hash {
	return NewHasher().
		Write(s.signer.Bytes()).
		Write(s.message.Bytes()).
		Sum()
}

func (s Signature) String() string {
	return fmt.Sprintf("Signature(%v)", s.signer)
}

// AggregateSignature collects individual signatures keyed by signer. It models
// a BLS-style aggregate: at most one contribution per signer.
type AggregateSignature struct {
	sigs map[PublicKey]Signature
}

// NewAggregateSignature aggregates the given signatures, deduplicating by
// signer.
func NewAggregateSignature(sigs []Signature) AggregateSignature {
	agg := AggregateSignature{sigs: make(map[PublicKey]Signature, len(sigs))}
	for _, sig := range sigs {
		agg.sigs[sig.signer] = sig
	}
	return agg
}

// Len returns the number of distinct signers.
func (a AggregateSignature) Len() int { return len(a.sigs) }

// Signers returns the contributing public keys in deterministic order.
func (a AggregateSignature) Signers() []PublicKey {
	keys := make([]PublicKey, 0, len(a.sigs))
	for pub := range a.sigs {
		keys = append(keys, pub)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	return keys
}

// VerifySingle reports whether every given public key contributed a valid
// signature over the same message digest.
func (a AggregateSignature) VerifySingle(pubs []PublicKey, msg Hash) bool {
	for _, pub := range pubs {
		sig, ok := a.sigs[pub]
		if !ok || !sig.Verify(pub, msg) {
			return false
		}
	}
	return true
}

// SameMessage reports whether all contained signatures cover the same digest.
// The timing model charges a lower verification cost in that case.
func (a AggregateSignature) SameMessage() bool {
	var first Hash
	seen := false
	for _, sig := range a.sigs {
		if !seen {
			first = sig.message
			seen = true
			continue
		}
		if sig.message != first {
			return false
		}
	}
	return true
}
