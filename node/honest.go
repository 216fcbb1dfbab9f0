// Package node adapts protocol state machines to the simulation engine's Node
// interface.
package node

import (
	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

// SimulationConfig bounds a run.
type SimulationConfig struct {
	// Blocks is the chain length at which a node votes to stop the
	// simulation.
	Blocks uint32
}

// Honest is an honest validator. Every received event is recorded with the
// metrics sink and dispatched to the protocol state machine.
type Honest struct {
	protocol *protocol.HonestProtocol
	config   SimulationConfig
}

// NewHonest creates an honest validator node.
func NewHonest(config SimulationConfig, protocolConfig protocol.Config, timing protocol.Timing,
	genesis *protocol.MacroBlock, keyPair crypto.KeyPair) *Honest {
	return &Honest{
		protocol: protocol.NewHonestProtocol(protocolConfig, timing, genesis, keyPair),
		config:   config,
	}
}

// OnEvent implements sim.Node.
func (n *Honest) OnEvent(ev *sim.Event, env *sim.Environment) bool {
	env.NoteEvent(metrics.MessageEvent{
		Own:     env.OwnID(),
		From:    ev.From(),
		Payload: ev.Payload(),
	}, ev.Time())

	switch msg := ev.Payload().(type) {
	// External events.
	case protocol.BlockMessage:
		n.protocol.ReceivedBlock(msg.Block, env)
	case protocol.TransactionMessage:
		// Reserved.

	// PBFT.
	case protocol.ViewChangeMessage:
		n.protocol.HandleViewChange(msg.ViewChange, env)
	case protocol.BlockProposalMessage:
		n.protocol.HandleProposal(msg.Proposal, msg.Signature, env)
	case protocol.BlockPrepareMessage:
		n.protocol.HandlePrepare(msg.Proof, env)
	case protocol.BlockCommitMessage:
		n.protocol.HandleCommit(msg.Proof, env)

	// Internal events.
	case protocol.BlockProcessed:
		n.protocol.ProcessedBlock(msg.Block, env)
	case protocol.BlockProduced:
		n.protocol.ProducedBlock(msg.Block, env)
	case protocol.ProposalProcessed:
		n.protocol.ProcessedProposal(msg.Proposal, msg.Signature, env)
	case protocol.TransactionProcessed:
		// Reserved.
	case protocol.MicroBlockTimeout:
		n.protocol.HandleTimeout(msg.BlockNumber, msg.ViewNumber, env)
	case protocol.MacroBlockTimeout:
		n.protocol.HandleTimeout(msg.BlockNumber, msg.ViewNumber, env)

	case protocol.Init:
		n.protocol.PrepareNextBlock(env)
	}

	// Run until the configured chain length is reached.
	return n.protocol.CurrentBlockNumber() < n.config.Blocks
}

// Protocol exposes the underlying state machine for post-run inspection.
func (n *Honest) Protocol() *protocol.HonestProtocol { return n.protocol }
