package protocol

import "github.com/nimiq/albatross-simulator/crypto"

// Message is the envelope of all protocol traffic: inter-node messages and the
// self-scheduled events that model processing delays and timeouts. Size is
// consumed by bandwidth-aware delay models; self-scheduled events never cross
// a link, so their sizes only matter for uniformity.
type Message interface {
	Kind() string
	Size() int
}

// BlockMessage announces a block to a peer.
type BlockMessage struct {
	Block Block
}

func (m BlockMessage) Kind() string { return "block" }
func (m BlockMessage) Size() int    { return m.Block.Size() }

// TransactionMessage submits a transaction to a validator. Reserved; the
// protocol currently ignores it.
type TransactionMessage struct {
	Tx Transaction
}

func (m TransactionMessage) Kind() string { return "transaction" }
func (m TransactionMessage) Size() int    { return transactionSize }

// ViewChangeMessage carries a view-change vote.
type ViewChangeMessage struct {
	ViewChange ViewChange
}

func (m ViewChangeMessage) Kind() string { return "view-change" }
func (m ViewChangeMessage) Size() int    { return 4 + 2 + signatureSize }

// BlockProposalMessage carries a macro block proposal signed by its producer.
type BlockProposalMessage struct {
	Proposal  *MacroBlock
	Signature crypto.Signature
}

func (m BlockProposalMessage) Kind() string { return "block-proposal" }
func (m BlockProposalMessage) Size() int    { return m.Proposal.Size() + signatureSize }

// BlockPrepareMessage carries a PBFT prepare vote.
type BlockPrepareMessage struct {
	Proof PbftProof
}

func (m BlockPrepareMessage) Kind() string { return "block-prepare" }
func (m BlockPrepareMessage) Size() int    { return signatureSize }

// BlockCommitMessage carries a PBFT commit vote.
type BlockCommitMessage struct {
	Proof PbftProof
}

func (m BlockCommitMessage) Kind() string { return "block-commit" }
func (m BlockCommitMessage) Size() int    { return signatureSize }

// BlockProcessed is the self-scheduled continuation of BlockMessage after the
// modeled verification delay.
type BlockProcessed struct {
	Block Block
}

func (m BlockProcessed) Kind() string { return "block-processed" }
func (m BlockProcessed) Size() int    { return m.Block.Size() }

// BlockProduced is the self-scheduled continuation of block production after
// the modeled assembly delay.
type BlockProduced struct {
	Block Block
}

func (m BlockProduced) Kind() string { return "block-produced" }
func (m BlockProduced) Size() int    { return m.Block.Size() }

// ProposalProcessed is the self-scheduled continuation of
// BlockProposalMessage after the modeled verification delay.
type ProposalProcessed struct {
	Proposal  *MacroBlock
	Signature crypto.Signature
}

func (m ProposalProcessed) Kind() string { return "proposal-processed" }
func (m ProposalProcessed) Size() int    { return m.Proposal.Size() + signatureSize }

// TransactionProcessed is reserved; the protocol currently ignores it.
type TransactionProcessed struct {
	Tx Transaction
}

func (m TransactionProcessed) Kind() string { return "transaction-processed" }
func (m TransactionProcessed) Size() int    { return transactionSize }

// MicroBlockTimeout fires when a micro slot's leader failed to deliver in
// time. Stale timeouts are recognized by comparing the slot and view against
// the node's current state.
type MicroBlockTimeout struct {
	BlockNumber uint32
	ViewNumber  uint16
}

func (m MicroBlockTimeout) Kind() string { return "micro-block-timeout" }
func (m MicroBlockTimeout) Size() int    { return 6 }

// MacroBlockTimeout is the macro-slot analogue of MicroBlockTimeout. The
// phase records how far PBFT had progressed when the timeout was scheduled.
type MacroBlockTimeout struct {
	BlockNumber uint32
	ViewNumber  uint16
	Phase       Phase
}

func (m MacroBlockTimeout) Kind() string { return "macro-block-timeout" }
func (m MacroBlockTimeout) Size() int    { return 7 }

// Init bootstraps a node at the start of the simulation.
type Init struct{}

func (m Init) Kind() string { return "init" }
func (m Init) Size() int    { return 0 }
