package protocol

import (
	"fmt"

	"github.com/nimiq/albatross-simulator/crypto"
)

// Phase is the PBFT progress of the pending macro block. Phases only ever
// advance within a slot; a view change or a stored block resets them.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseProposed
	PhasePrepared
	PhaseCommitted
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseProposed:
		return "proposed"
	case PhasePrepared:
		return "prepared"
	case PhaseCommitted:
		return "committed"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// PbftProof is a single validator's prepare or commit vote: a signature over
// the proposed macro header's hash.
type PbftProof struct {
	Signature crypto.Signature
}

// NewPbftProof signs the header hash with the validator's secret key.
func NewPbftProof(sec crypto.SecretKey, headerHash crypto.Hash) PbftProof {
	return PbftProof{Signature: sec.Sign(headerHash)}
}

// Signer returns the voting validator.
func (p PbftProof) Signer() crypto.PublicKey { return p.Signature.Signer() }

// Verify reports whether the proof covers the given header hash.
func (p PbftProof) Verify(headerHash crypto.Hash) bool {
	return p.Signature.Verify(p.Signature.Signer(), headerHash)
}

func (p PbftProof) String() string {
	return fmt.Sprintf("PbftProof(%v)", p.Signer())
}

// viewChangeDigest is the message signed by view-change votes: the slot and
// the view being voted in.
func viewChangeDigest(blockNumber uint32, newViewNumber uint16) crypto.Hash {
	return crypto.NewHasher().
		WriteUint32(blockNumber).
		WriteUint16(newViewNumber).
		Sum()
}

// ViewChange is one validator's vote to depose the current leader of a block
// slot and move to a higher view.
type ViewChange struct {
	BlockNumber   uint32
	NewViewNumber uint16
	Signer        crypto.PublicKey
	Signature     crypto.Signature
}

// NewViewChange builds a signed view-change vote.
func NewViewChange(blockNumber uint32, newViewNumber uint16, sec crypto.SecretKey) ViewChange {
	return ViewChange{
		BlockNumber:   blockNumber,
		NewViewNumber: newViewNumber,
		Signer:        sec.Public(),
		Signature:     sec.Sign(viewChangeDigest(blockNumber, newViewNumber)),
	}
}

// Verify checks the vote's signature.
func (vc ViewChange) Verify() bool {
	return vc.Signature.Verify(vc.Signer, viewChangeDigest(vc.BlockNumber, vc.NewViewNumber))
}

func (vc ViewChange) String() string {
	return fmt.Sprintf("ViewChange(#%d -> view %d by %v)", vc.BlockNumber, vc.NewViewNumber, vc.Signer)
}

// ViewChangeProof aggregates the view-change votes justifying a block produced
// in a view greater than zero. The bitmap names the contributing validators by
// index into the validator set.
type ViewChangeProof struct {
	Signatures crypto.AggregateSignature
	Bitmap     []uint16
}

// NewViewChangeProof aggregates votes into a proof. Votes from signers outside
// the validator set are dropped.
func NewViewChangeProof(votes map[crypto.PublicKey]ViewChange, validators []crypto.PublicKey) *ViewChangeProof {
	sigs := make([]crypto.Signature, 0, len(votes))
	var bitmap []uint16
	for i, pub := range validators {
		vote, ok := votes[pub]
		if !ok {
			continue
		}
		sigs = append(sigs, vote.Signature)
		bitmap = append(bitmap, uint16(i))
	}
	return &ViewChangeProof{
		Signatures: crypto.NewAggregateSignature(sigs),
		Bitmap:     bitmap,
	}
}

// Verify reports whether every validator named by the bitmap signed the
// view-change message for the given slot and view.
func (p *ViewChangeProof) Verify(validators []crypto.PublicKey, blockNumber uint32, newViewNumber uint16) bool {
	keys, ok := validatorsFromBitmap(validators, p.Bitmap)
	if !ok {
		return false
	}
	return p.Signatures.VerifySingle(keys, viewChangeDigest(blockNumber, newViewNumber))
}

// Size returns the approximate serialized size in bytes.
func (p *ViewChangeProof) Size() int {
	return p.Signatures.Len()*signatureSize + len(p.Bitmap)*2
}

// hashBytes contributes the proof to a containing structure's hash.
func (p *ViewChangeProof) hashBytes() []byte {
	h := crypto.NewHasher()
	for _, pub := range p.Signatures.Signers() {
		h.Write(pub.Bytes())
	}
	for _, idx := range p.Bitmap {
		h.WriteUint16(idx)
	}
	sum := h.Sum()
	return sum.Bytes()
}

// AggregateProof is an aggregated prepare or commit over a macro header hash
// plus the bitmap naming the participating validators.
type AggregateProof struct {
	Signatures crypto.AggregateSignature
	Bitmap     []uint16
}

// NewAggregateProof aggregates PBFT votes into a proof. Votes from signers
// outside the validator set are dropped.
func NewAggregateProof(proofs map[crypto.PublicKey]PbftProof, validators []crypto.PublicKey) AggregateProof {
	sigs := make([]crypto.Signature, 0, len(proofs))
	var bitmap []uint16
	for i, pub := range validators {
		proof, ok := proofs[pub]
		if !ok {
			continue
		}
		sigs = append(sigs, proof.Signature)
		bitmap = append(bitmap, uint16(i))
	}
	return AggregateProof{
		Signatures: crypto.NewAggregateSignature(sigs),
		Bitmap:     bitmap,
	}
}

// Verify reports whether every validator named by the bitmap signed the given
// header hash.
func (p AggregateProof) Verify(validators []crypto.PublicKey, headerHash crypto.Hash) bool {
	keys, ok := validatorsFromBitmap(validators, p.Bitmap)
	if !ok {
		return false
	}
	return p.Signatures.VerifySingle(keys, headerHash)
}

// Size returns the approximate serialized size in bytes.
func (p AggregateProof) Size() int {
	return p.Signatures.Len()*signatureSize + len(p.Bitmap)*2
}

// PbftJustification is the pair of aggregate proofs a committed macro block
// carries: one for the prepare phase, one for the commit phase.
type PbftJustification struct {
	Prepare AggregateProof
	Commit  AggregateProof
}

// Verify checks both aggregate proofs against the header hash.
func (j *PbftJustification) Verify(validators []crypto.PublicKey, headerHash crypto.Hash) bool {
	return j.Prepare.Verify(validators, headerHash) && j.Commit.Verify(validators, headerHash)
}

// Size returns the approximate serialized size in bytes.
func (j *PbftJustification) Size() int {
	return j.Prepare.Size() + j.Commit.Size()
}

// validatorsFromBitmap resolves bitmap indexes to public keys. It returns
// false when an index is out of range.
func validatorsFromBitmap(validators []crypto.PublicKey, bitmap []uint16) ([]crypto.PublicKey, bool) {
	keys := make([]crypto.PublicKey, 0, len(bitmap))
	for _, idx := range bitmap {
		if int(idx) >= len(validators) {
			return nil, false
		}
		keys = append(keys, validators[idx])
	}
	return keys, true
}
