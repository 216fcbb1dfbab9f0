package protocol

import (
	"time"

	"github.com/nimiq/albatross-simulator/crypto"
)

// Timing estimates the local computation cost of cryptographic operations.
// Nodes schedule self-events delayed by these estimates to model processing
// without performing real cryptography.
type Timing struct {
	Signing           time.Duration
	Verification      time.Duration
	BatchVerification time.Duration

	GenerateAggregateSignatureSameMessage     time.Duration
	GenerateAggregateSignatureDistinctMessage time.Duration
	GenerateAggregatePublicKey                time.Duration
	VerifyAggregateSignatureSameMessage       time.Duration
	VerifyAggregateSignatureDistinctMessage   time.Duration
}

// DefaultTiming returns cost estimates in the order of magnitude of ed25519 /
// BLS operations on commodity hardware.
func DefaultTiming() Timing {
	return Timing{
		Signing:           50 * time.Microsecond,
		Verification:      150 * time.Microsecond,
		BatchVerification: 80 * time.Microsecond,

		GenerateAggregateSignatureSameMessage:     20 * time.Microsecond,
		GenerateAggregateSignatureDistinctMessage: 40 * time.Microsecond,
		GenerateAggregatePublicKey:                15 * time.Microsecond,
		VerifyAggregateSignatureSameMessage:       60 * time.Microsecond,
		VerifyAggregateSignatureDistinctMessage:   120 * time.Microsecond,
	}
}

// aggregateVerificationTime estimates verifying an aggregate signature. Same-
// message aggregates verify cheaper than distinct-message aggregates.
func (t Timing) aggregateVerificationTime(agg crypto.AggregateSignature) time.Duration {
	n := time.Duration(agg.Len())
	if agg.SameMessage() {
		return n * t.VerifyAggregateSignatureSameMessage
	}
	return n * t.VerifyAggregateSignatureDistinctMessage
}

// viewChangeProofTime estimates verifying a view-change proof.
func (t Timing) viewChangeProofTime(proof *ViewChangeProof) time.Duration {
	return t.GenerateAggregatePublicKey + t.aggregateVerificationTime(proof.Signatures)
}

// justificationTime estimates verifying a PBFT justification.
func (t Timing) justificationTime(j *PbftJustification) time.Duration {
	return t.aggregateVerificationTime(j.Prepare.Signatures) +
		t.aggregateVerificationTime(j.Commit.Signatures)
}

// BlockProcessingTime estimates the time to verify a received block.
func (t Timing) BlockProcessingTime(block Block) time.Duration {
	switch b := block.(type) {
	case *MicroBlock:
		// Seed plus header justification.
		cost := 2 * t.Verification
		if b.Extrinsics.ViewChangeProof != nil {
			cost += t.viewChangeProofTime(b.Extrinsics.ViewChangeProof)
		}
		cost += time.Duration(len(b.Extrinsics.Transactions)) * t.BatchVerification
		cost += time.Duration(len(b.Extrinsics.SlashInherents)) * 2 * t.Verification
		return cost
	case *MacroBlock:
		cost := t.Verification // seed
		if b.Extrinsics.ViewChangeProof != nil {
			cost += t.viewChangeProofTime(b.Extrinsics.ViewChangeProof)
		}
		if b.Justification != nil {
			cost += t.justificationTime(b.Justification)
		}
		return cost
	default:
		return t.Verification
	}
}

// ProposalProcessingTime estimates the time to verify a macro block proposal
// and emit the own prepare vote.
func (t Timing) ProposalProcessingTime(proposal *MacroBlock) time.Duration {
	cost := 2 * t.Verification // seed plus producer signature
	if proposal.Extrinsics.ViewChangeProof != nil {
		cost += t.viewChangeProofTime(proposal.Extrinsics.ViewChangeProof)
	}
	return cost + t.Signing
}

// BlockProductionTime estimates the time to assemble and sign a new block.
func (t Timing) BlockProductionTime(block Block) time.Duration {
	cost := 2 * t.Signing // seed plus header
	switch b := block.(type) {
	case *MicroBlock:
		if b.Extrinsics.ViewChangeProof != nil {
			cost += time.Duration(b.Extrinsics.ViewChangeProof.Signatures.Len()) *
				t.GenerateAggregateSignatureSameMessage
		}
	case *MacroBlock:
		if b.Extrinsics.ViewChangeProof != nil {
			cost += time.Duration(b.Extrinsics.ViewChangeProof.Signatures.Len()) *
				t.GenerateAggregateSignatureSameMessage
		}
	}
	return cost
}
