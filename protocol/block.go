// Package protocol implements the Albatross consensus protocol for simulated
// honest validators: leader-based micro blocks, PBFT-finalized macro blocks,
// view changes and timeouts. All logic is expressed in terms of events the
// simulation engine schedules and delivers.
package protocol

import (
	"fmt"

	"github.com/nimiq/albatross-simulator/crypto"
)

// BlockType distinguishes the two block kinds of the chain.
type BlockType uint8

const (
	// BlockTypeMicro is a leader-signed block that can be replaced by a view
	// change until the next macro block finalizes it.
	BlockTypeMicro BlockType = iota + 1
	// BlockTypeMacro is a PBFT-committed block. Macro blocks are final.
	BlockTypeMacro
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeMicro:
		return "micro"
	case BlockTypeMacro:
		return "macro"
	default:
		return fmt.Sprintf("BlockType(%d)", uint8(t))
	}
}

// Block is either a *MicroBlock or a *MacroBlock.
type Block interface {
	// Number returns the block's position in the chain.
	Number() uint32
	// ViewNumber returns the leader epoch the block was produced in.
	ViewNumber() uint16
	// Type returns the block kind.
	Type() BlockType
	// Seed returns the random seed signature carried by the block.
	Seed() crypto.Signature
	// Hash returns the header hash identifying the block.
	Hash() crypto.Hash
	// Size returns the approximate serialized size in bytes, used by the
	// network delay model.
	Size() int
}

// Wire-size constants for the delay model.
const (
	hashSize      = crypto.HashSize
	pubKeySize    = 8
	signatureSize = pubKeySize + crypto.HashSize
)

// MicroDigest names the producer and position of a micro block.
type MicroDigest struct {
	Validator   crypto.PublicKey
	BlockNumber uint32
	ViewNumber  uint16
}

// Bytes returns the deterministic byte encoding of the digest.
func (d MicroDigest) Bytes() []byte {
	h := crypto.NewHasher()
	h.Write(d.Validator.Bytes())
	h.WriteUint32(d.BlockNumber)
	h.WriteUint16(d.ViewNumber)
	return digestBytes(h)
}

// MacroDigest names the validator set and position of a macro block.
type MacroDigest struct {
	Validators      []crypto.PublicKey
	ParentMacroHash crypto.Hash
	BlockNumber     uint32
	ViewNumber      uint16
}

// Bytes returns the deterministic byte encoding of the digest.
func (d MacroDigest) Bytes() []byte {
	h := crypto.NewHasher()
	for _, v := range d.Validators {
		h.Write(v.Bytes())
	}
	h.Write(d.ParentMacroHash.Bytes())
	h.WriteUint32(d.BlockNumber)
	h.WriteUint16(d.ViewNumber)
	return digestBytes(h)
}

// digestBytes hashes the accumulated input once so digests contribute a fixed
// number of bytes to header hashing.
func digestBytes(h *crypto.Hasher) []byte {
	sum := h.Sum()
	return sum.Bytes()
}

// MicroHeader is the hashed-and-signed part of a micro block.
type MicroHeader struct {
	ParentHash     crypto.Hash
	Digest         MicroDigest
	ExtrinsicsRoot crypto.Hash
	StateRoot      crypto.Hash
}

// Hash returns the header hash.
func (h MicroHeader) Hash() crypto.Hash {
	return crypto.NewHasher().
		Write(h.ParentHash.Bytes()).
		Write(h.Digest.Bytes()).
		Write(h.ExtrinsicsRoot.Bytes()).
		Write(h.StateRoot.Bytes()).
		Sum()
}

func (h MicroHeader) String() string {
	return fmt.Sprintf("[#%d, view %d, type micro]", h.Digest.BlockNumber, h.Digest.ViewNumber)
}

// MacroHeader is the hashed-and-signed part of a macro block.
type MacroHeader struct {
	ParentHash     crypto.Hash
	Digest         MacroDigest
	ExtrinsicsRoot crypto.Hash
	StateRoot      crypto.Hash
}

// Hash returns the header hash.
func (h MacroHeader) Hash() crypto.Hash {
	return crypto.NewHasher().
		Write(h.ParentHash.Bytes()).
		Write(h.Digest.Bytes()).
		Write(h.ExtrinsicsRoot.Bytes()).
		Write(h.StateRoot.Bytes()).
		Sum()
}

// MicroExtrinsics is the body of a micro block.
type MicroExtrinsics struct {
	Timestamp       uint64
	Seed            crypto.Signature
	ViewChangeProof *ViewChangeProof
	SlashInherents  []SlashInherent
	Transactions    []Transaction
}

// Hash returns the extrinsics root committed to by the header.
func (e MicroExtrinsics) Hash() crypto.Hash {
	h := crypto.NewHasher()
	h.WriteUint64(e.Timestamp)
	h.Write(e.Seed.Hash().Bytes())
	if e.ViewChangeProof != nil {
		h.Write(e.ViewChangeProof.hashBytes())
	}
	return h.Sum()
}

// Size returns the approximate serialized size in bytes.
func (e MicroExtrinsics) Size() int {
	size := 8 + signatureSize
	if e.ViewChangeProof != nil {
		size += e.ViewChangeProof.Size()
	}
	size += len(e.SlashInherents) * slashInherentSize
	size += len(e.Transactions) * transactionSize
	return size
}

// MacroExtrinsics is the body of a macro block.
type MacroExtrinsics struct {
	Timestamp       uint64
	Seed            crypto.Signature
	ViewChangeProof *ViewChangeProof
}

// Hash returns the extrinsics root committed to by the header.
func (e MacroExtrinsics) Hash() crypto.Hash {
	h := crypto.NewHasher()
	h.WriteUint64(e.Timestamp)
	h.Write(e.Seed.Hash().Bytes())
	if e.ViewChangeProof != nil {
		h.Write(e.ViewChangeProof.hashBytes())
	}
	return h.Sum()
}

// Size returns the approximate serialized size in bytes.
func (e MacroExtrinsics) Size() int {
	size := 8 + signatureSize
	if e.ViewChangeProof != nil {
		size += e.ViewChangeProof.Size()
	}
	return size
}

// MicroBlock is a leader-signed block carrying transactions.
type MicroBlock struct {
	Header        MicroHeader
	Extrinsics    MicroExtrinsics
	Justification crypto.Signature // producer's signature over the header hash
}

// Number implements Block.
func (b *MicroBlock) Number() uint32 { return b.Header.Digest.BlockNumber }

// ViewNumber implements Block.
func (b *MicroBlock) ViewNumber() uint16 { return b.Header.Digest.ViewNumber }

// Type implements Block.
func (b *MicroBlock) Type() BlockType { return BlockTypeMicro }

// Seed implements Block.
func (b *MicroBlock) Seed() crypto.Signature { return b.Extrinsics.Seed }

// Hash implements Block.
func (b *MicroBlock) Hash() crypto.Hash { return b.Header.Hash() }

// Size implements Block.
func (b *MicroBlock) Size() int {
	return 4*hashSize + signatureSize + b.Extrinsics.Size()
}

func (b *MicroBlock) String() string {
	return fmt.Sprintf("[#%d, view %d, type micro]", b.Number(), b.ViewNumber())
}

// MacroBlock is a PBFT-committed block naming the validator set. A nil
// Justification marks either the genesis block or an uncommitted proposal.
type MacroBlock struct {
	Header        MacroHeader
	Extrinsics    MacroExtrinsics
	Justification *PbftJustification
}

// Number implements Block.
func (b *MacroBlock) Number() uint32 { return b.Header.Digest.BlockNumber }

// ViewNumber implements Block.
func (b *MacroBlock) ViewNumber() uint16 { return b.Header.Digest.ViewNumber }

// Type implements Block.
func (b *MacroBlock) Type() BlockType { return BlockTypeMacro }

// Seed implements Block.
func (b *MacroBlock) Seed() crypto.Signature { return b.Extrinsics.Seed }

// Hash implements Block.
func (b *MacroBlock) Hash() crypto.Hash { return b.Header.Hash() }

// Size implements Block.
func (b *MacroBlock) Size() int {
	size := 4*hashSize + len(b.Header.Digest.Validators)*pubKeySize + b.Extrinsics.Size()
	if b.Justification != nil {
		size += b.Justification.Size()
	}
	return size
}

func (b *MacroBlock) String() string {
	return fmt.Sprintf("[#%d, view %d, type macro]", b.Number(), b.ViewNumber())
}

// NewGenesisBlock builds the macro block at position 0 for the given validator
// set. It is the only macro block without a justification.
func NewGenesisBlock(validators []crypto.PublicKey) *MacroBlock {
	digest := MacroDigest{
		Validators:      validators,
		ParentMacroHash: crypto.Hash{},
		BlockNumber:     0,
		ViewNumber:      0,
	}
	seed := crypto.KeyPairFromID(0).SecretKey().Sign(crypto.Hash{})
	extrinsics := MacroExtrinsics{
		Timestamp: 0,
		Seed:      seed,
	}
	header := MacroHeader{
		ParentHash:     crypto.Hash{},
		Digest:         digest,
		ExtrinsicsRoot: extrinsics.Hash(),
		StateRoot:      crypto.Hash{},
	}
	return &MacroBlock{
		Header:     header,
		Extrinsics: extrinsics,
	}
}
