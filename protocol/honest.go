package protocol

import (
	"errors"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/sim"
)

// MacroBlockAccepted is the metrics event noted exactly once per node when a
// macro block gathers its commit quorum and is stored with a justification.
type MacroBlockAccepted struct {
	Node  sim.NodeID
	Block *MacroBlock
}

// HonestProtocol drives consensus at one honest validator. The engine feeds
// it exactly one event per dispatch; every handler runs to completion and
// communicates only through the Environment.
type HonestProtocol struct {
	config Config
	timing Timing

	viewChangeState *ViewChangeState
	macroBlockState *MacroBlockState
	chain           []Block
	keyPair         crypto.KeyPair
	validators      []crypto.PublicKey

	// knownBlocks rejects duplicate processing of blocks already seen.
	knownBlocks map[crypto.Hash]struct{}

	log *logrus.Entry
}

// NewHonestProtocol creates a protocol instance anchored at the genesis macro
// block. The validator set is taken from the genesis digest.
func NewHonestProtocol(config Config, timing Timing, genesis *MacroBlock, keyPair crypto.KeyPair) *HonestProtocol {
	return &HonestProtocol{
		config:          config,
		timing:          timing,
		viewChangeState: NewViewChangeState(),
		macroBlockState: NewMacroBlockState(),
		chain:           []Block{genesis},
		keyPair:         keyPair,
		validators:      genesis.Header.Digest.Validators,
		knownBlocks:     make(map[crypto.Hash]struct{}),
		log:             logrus.WithField("validator", keyPair.PublicKey()),
	}
}

// CurrentBlockNumber returns the number of the chain tip.
func (p *HonestProtocol) CurrentBlockNumber() uint32 {
	return uint32(len(p.chain)) - 1
}

// nextBlockNumber returns the number of the block being decided.
func (p *HonestProtocol) nextBlockNumber() uint32 {
	return uint32(len(p.chain))
}

// lastMacroBlockNumber returns the position of the most recent macro block.
func (p *HonestProtocol) lastMacroBlockNumber() uint32 {
	current := p.CurrentBlockNumber()
	return current - current%p.config.EpochLength()
}

// blockTypeAt returns the block type expected at the given position. Macro
// blocks sit at multiples of the epoch length, genesis included.
func (p *HonestProtocol) blockTypeAt(blockNumber uint32) BlockType {
	if blockNumber%p.config.EpochLength() == 0 {
		return BlockTypeMacro
	}
	return BlockTypeMicro
}

// storeBlock appends a block to the chain, rolling back replaced micro blocks
// first, and resets the per-slot consensus state. Verification has already
// happened; only implementation invariants are asserted here.
func (p *HonestProtocol) storeBlock(block Block) {
	blockNumber := block.Number()
	if blockNumber > uint32(len(p.chain)) {
		panic("protocol: storing orphan block")
	}

	// Revert the chain until it ends right before the block's slot. Macro
	// blocks are final and must never be popped.
	for blockNumber < uint32(len(p.chain)) {
		popped := p.chain[len(p.chain)-1]
		if popped.Type() == BlockTypeMacro {
			panic("protocol: rolling back a macro block")
		}
		p.chain = p.chain[:len(p.chain)-1]
	}

	p.knownBlocks[block.Hash()] = struct{}{} // also mark blocks we produced
	p.chain = append(p.chain, block)

	p.viewChangeState.Reset()
	p.macroBlockState.Reset()
}

// PrepareNextBlock produces the next block if this validator is its leader,
// and otherwise arms the timeout that will trigger a view change.
func (p *HonestProtocol) PrepareNextBlock(env Environment) {
	view := p.viewChangeState.ViewNumber
	if p.producerAt(p.nextBlockNumber(), view) == p.keyPair.PublicKey() {
		p.produceBlock(env)
		return
	}
	switch p.blockTypeAt(p.nextBlockNumber()) {
	case BlockTypeMicro:
		delay := p.config.MicroBlockTimeout * time.Duration(view+1)
		env.ScheduleSelf(MicroBlockTimeout{
			BlockNumber: p.nextBlockNumber(),
			ViewNumber:  view,
		}, env.Time().Add(delay))
	case BlockTypeMacro:
		delay := p.config.MacroBlockTimeout * time.Duration(view+1)
		env.ScheduleSelf(MacroBlockTimeout{
			BlockNumber: p.nextBlockNumber(),
			ViewNumber:  view,
			Phase:       p.macroBlockState.Phase,
		}, env.Time().Add(delay))
	}
}

// ReceivedBlock handles an announced block: duplicates are dropped, everything
// else is scheduled for processing after the modeled verification delay.
func (p *HonestProtocol) ReceivedBlock(block Block, env Environment) {
	hash := block.Hash()
	if _, ok := p.knownBlocks[hash]; ok {
		return
	}
	p.knownBlocks[hash] = struct{}{}

	processed := env.Time().Add(p.timing.BlockProcessingTime(block))
	env.ScheduleSelf(BlockProcessed{Block: block}, processed)
}

// ProcessedBlock verifies a block after its processing delay. Valid blocks are
// stored and relayed; invalid blocks are logged and dropped.
func (p *HonestProtocol) ProcessedBlock(block Block, env Environment) {
	if err := p.VerifyBlock(block); err != nil {
		var fork *ForkError
		if errors.As(err, &fork) {
			// Fork evidence is not an error per se: the slash inherent is
			// logged and the duplicate dropped. Produced blocks do not carry
			// the inherent.
			p.log.Warnf("[protocol] micro block fork detected at #%d", fork.Inherent.Header1.Digest.BlockNumber)
			return
		}
		p.log.Warnf("[protocol] dropping invalid block %v: %v", block, err)
		return
	}

	p.storeBlock(block)
	p.relay(BlockMessage{Block: block}, env)
	p.PrepareNextBlock(env)
}

// HandleTimeout reacts to a block timeout. If the node has moved past the
// timed-out slot or view in the meantime, the timeout is stale and ignored;
// otherwise the node votes for a view change.
func (p *HonestProtocol) HandleTimeout(blockNumber uint32, viewNumber uint16, env Environment) {
	if p.nextBlockNumber() != blockNumber || p.viewChangeState.ViewNumber != viewNumber {
		return
	}

	viewChange := NewViewChange(blockNumber, viewNumber+1, p.keyPair.SecretKey())
	p.multicastToValidators(ViewChangeMessage{ViewChange: viewChange}, env)

	// Handle the own vote exactly like everyone else's.
	p.HandleViewChange(viewChange, env)
}

// HandleViewChange validates and counts a view-change vote. Once strictly more
// than the two-thirds threshold of validators voted for the next view, the
// node advances its view, resets PBFT progress and re-arms its timeout.
func (p *HonestProtocol) HandleViewChange(viewChange ViewChange, env Environment) {
	if viewChange.BlockNumber != p.nextBlockNumber() || !viewChange.Verify() {
		return
	}

	p.viewChangeState.AddVote(viewChange)

	nextView := p.viewChangeState.ViewNumber + 1
	if p.viewChangeState.NumVotes(nextView) > p.config.TwoThirdThreshold() {
		p.viewChangeState.ViewNumber = nextView

		// A view change aborts any PBFT round in flight.
		p.macroBlockState.Reset()

		switch p.blockTypeAt(p.nextBlockNumber()) {
		case BlockTypeMicro:
			delay := p.config.MicroBlockTimeout * time.Duration(nextView+1)
			env.ScheduleSelf(MicroBlockTimeout{
				BlockNumber: p.nextBlockNumber(),
				ViewNumber:  nextView,
			}, env.Time().Add(delay))
		case BlockTypeMacro:
			delay := p.config.MacroBlockTimeout * time.Duration(nextView+1)
			env.ScheduleSelf(MacroBlockTimeout{
				BlockNumber: p.nextBlockNumber(),
				ViewNumber:  nextView,
				Phase:       p.macroBlockState.Phase,
			}, env.Time().Add(delay))
		}

		p.PrepareNextBlock(env)
	}
}

// HandleProposal schedules a macro block proposal for processing after the
// modeled verification delay.
func (p *HonestProtocol) HandleProposal(proposal *MacroBlock, signature crypto.Signature, env Environment) {
	processed := env.Time().Add(p.timing.ProposalProcessingTime(proposal))
	env.ScheduleSelf(ProposalProcessed{Proposal: proposal, Signature: signature}, processed)
}

// ProcessedProposal verifies a macro block proposal. On success the node
// adopts it, relays it and emits its prepare vote.
func (p *HonestProtocol) ProcessedProposal(proposal *MacroBlock, signature crypto.Signature, env Environment) {
	// Only one proposal per slot and view is considered.
	if p.macroBlockState.Proposal != nil {
		return
	}

	err := p.verifyMacroBlock(proposal, true)
	if err == nil {
		// The proposal must be signed by the slot's elected producer.
		producer := p.producerAt(proposal.Number(), proposal.ViewNumber())
		if !signature.Verify(producer, proposal.Header.Hash()) {
			err = ErrInvalidBlockProducer
		}
	}
	if err != nil {
		p.log.Warnf("[protocol] dropping invalid proposal %v: %v", proposal, err)
		return
	}

	p.macroBlockState.Proposal = proposal
	p.macroBlockState.Phase = PhaseProposed

	hash := proposal.Header.Hash()
	p.relay(BlockProposalMessage{Proposal: proposal, Signature: signature}, env)

	prepare := NewPbftProof(p.keyPair.SecretKey(), hash)
	p.multicastToValidators(BlockPrepareMessage{Proof: prepare}, env)
	p.HandlePrepare(prepare, env)
}

// HandlePrepare counts a prepare vote against the adopted proposal. Once the
// quorum is reached the node advances to the prepared phase and emits its
// commit vote.
func (p *HonestProtocol) HandlePrepare(prepare PbftProof, env Environment) {
	if p.macroBlockState.Proposal == nil {
		return
	}
	hash := p.macroBlockState.Proposal.Header.Hash()
	if !prepare.Verify(hash) {
		return
	}

	p.macroBlockState.AddPrepare(prepare)

	if p.macroBlockState.NumPrepares() > p.config.TwoThirdThreshold() &&
		p.macroBlockState.Phase < PhasePrepared {
		p.macroBlockState.Phase = PhasePrepared

		commit := NewPbftProof(p.keyPair.SecretKey(), hash)
		p.multicastToValidators(BlockCommitMessage{Proof: commit}, env)
		p.HandleCommit(commit, env)
	}
}

// HandleCommit counts a commit vote against the adopted proposal. Once the
// quorum is reached the proposal is promoted to a committed macro block with
// its justification attached, stored and relayed.
func (p *HonestProtocol) HandleCommit(commit PbftProof, env Environment) {
	if p.macroBlockState.Proposal == nil {
		return
	}
	hash := p.macroBlockState.Proposal.Header.Hash()
	if !commit.Verify(hash) {
		return
	}

	p.macroBlockState.AddCommit(commit)

	if p.macroBlockState.NumCommits() > p.config.TwoThirdThreshold() &&
		p.macroBlockState.Phase < PhaseCommitted {
		p.macroBlockState.Phase = PhaseCommitted

		// Copy the proposal before attaching the justification: the proposal
		// value is shared with in-flight messages at other nodes.
		committed := *p.macroBlockState.Proposal
		committed.Justification = &PbftJustification{
			Prepare: NewAggregateProof(p.macroBlockState.Prepares(), p.validators),
			Commit:  NewAggregateProof(p.macroBlockState.Commits(), p.validators),
		}
		block := &committed

		p.storeBlock(block)
		p.relay(BlockMessage{Block: block}, env)

		env.NoteEvent(MacroBlockAccepted{Node: env.OwnID(), Block: block}, env.Time())

		p.PrepareNextBlock(env)
	}
}

// VerifyBlock checks whether the node would accept the block in its current
// state. The first failing acceptance predicate determines the error.
func (p *HonestProtocol) VerifyBlock(block Block) error {
	switch b := block.(type) {
	case *MicroBlock:
		return p.verifyMicroBlock(b)
	case *MacroBlock:
		return p.verifyMacroBlock(b, false)
	default:
		return ErrInvalidBlockType
	}
}

// verifyMicroBlock checks the acceptance predicates for a micro block. The
// first failing condition is the returned error.
func (p *HonestProtocol) verifyMicroBlock(block *MicroBlock) error {
	blockNumber := block.Number()
	if blockNumber > p.nextBlockNumber() || blockNumber <= p.lastMacroBlockNumber() {
		return ErrInvalidBlockNumber
	}

	if p.blockTypeAt(blockNumber) != BlockTypeMicro {
		return ErrInvalidBlockType
	}

	if !block.Justification.Verify(block.Header.Digest.Validator, block.Header.Hash()) {
		return ErrInvalidSignature
	}

	if blockNumber == p.nextBlockNumber() {
		// We committed to not accepting blocks from views we voted out of.
		if block.ViewNumber() < p.viewChangeState.ViewNumber {
			return ErrOldViewNumber
		}
	} else {
		// The slot is already filled; only a strictly higher view replaces it.
		incumbent := p.chain[blockNumber]
		switch {
		case block.ViewNumber() < incumbent.ViewNumber():
			return ErrOldViewNumber
		case block.ViewNumber() == incumbent.ViewNumber():
			other, ok := incumbent.(*MicroBlock)
			if !ok {
				panic("protocol: micro block conflicting with macro slot")
			}
			return &ForkError{Inherent: SlashInherent{
				Header1:        block.Header,
				Justification1: block.Justification,
				Header2:        other.Header,
				Justification2: other.Justification,
			}}
		}
	}

	if block.ViewNumber() > 0 {
		proof := block.Extrinsics.ViewChangeProof
		if proof == nil {
			return ErrMissingViewChangeMessages
		}
		if !proof.Verify(p.validators, blockNumber, block.ViewNumber()) {
			return ErrInvalidViewChangeMessages
		}
	}

	return nil
}

// verifyMacroBlock checks the acceptance predicates for a macro block. A
// proposal must not carry a justification yet; a committed block must carry a
// valid one.
func (p *HonestProtocol) verifyMacroBlock(block *MacroBlock, proposal bool) error {
	blockNumber := block.Number()
	if blockNumber != p.nextBlockNumber() {
		return ErrInvalidBlockNumber
	}

	if p.blockTypeAt(blockNumber) != BlockTypeMacro {
		return ErrInvalidBlockType
	}

	if !proposal {
		if block.Justification == nil {
			return ErrMissingJustification
		}
		if !block.Justification.Verify(p.validators, block.Header.Hash()) {
			return ErrInvalidSignature
		}
	}

	if block.ViewNumber() < p.viewChangeState.ViewNumber {
		return ErrOldViewNumber
	}

	if block.ViewNumber() > 0 {
		proof := block.Extrinsics.ViewChangeProof
		if proof == nil {
			return ErrMissingViewChangeMessages
		}
		if !proof.Verify(p.validators, blockNumber, block.ViewNumber()) {
			return ErrInvalidViewChangeMessages
		}
	}

	return nil
}

// computeValidators selects the validator set for the next epoch. The
// simulation keeps the set fixed.
func (p *HonestProtocol) computeValidators(_ uint32, _ crypto.Signature) []crypto.PublicKey {
	return p.validators
}

// produceBlock assembles the next block and schedules its completion after
// the modeled production delay.
func (p *HonestProtocol) produceBlock(env Environment) {
	blockNumber := p.nextBlockNumber()
	view := p.viewChangeState.ViewNumber

	var viewChangeProof *ViewChangeProof
	if votes := p.viewChangeState.VotesFor(view); len(votes) > 0 {
		viewChangeProof = NewViewChangeProof(votes, p.validators)
	}

	previous := p.chain[blockNumber-1]
	seed := p.keyPair.SecretKey().Sign(previous.Seed().Hash())

	var block Block
	switch p.blockTypeAt(blockNumber) {
	case BlockTypeMicro:
		extrinsics := MicroExtrinsics{
			Timestamp:       0,
			Seed:            seed,
			ViewChangeProof: viewChangeProof,
		}
		header := MicroHeader{
			ParentHash: previous.Hash(),
			Digest: MicroDigest{
				Validator:   p.keyPair.PublicKey(),
				BlockNumber: blockNumber,
				ViewNumber:  view,
			},
			ExtrinsicsRoot: extrinsics.Hash(),
			StateRoot:      crypto.Hash{},
		}
		block = &MicroBlock{
			Header:        header,
			Extrinsics:    extrinsics,
			Justification: p.keyPair.SecretKey().Sign(header.Hash()),
		}
	case BlockTypeMacro:
		extrinsics := MacroExtrinsics{
			Timestamp:       0,
			Seed:            seed,
			ViewChangeProof: viewChangeProof,
		}
		header := MacroHeader{
			ParentHash: previous.Hash(),
			Digest: MacroDigest{
				Validators:      p.computeValidators(blockNumber, seed),
				ParentMacroHash: p.chain[p.lastMacroBlockNumber()].Hash(),
				BlockNumber:     blockNumber,
				ViewNumber:      view,
			},
			ExtrinsicsRoot: extrinsics.Hash(),
			StateRoot:      crypto.Hash{},
		}
		block = &MacroBlock{
			Header:     header,
			Extrinsics: extrinsics,
		}
	}

	produced := env.Time().Add(p.timing.BlockProductionTime(block))
	env.ScheduleSelf(BlockProduced{Block: block}, produced)
}

// ProducedBlock finishes block production. Micro blocks are stored and
// announced directly; macro blocks enter PBFT as a signed proposal.
func (p *HonestProtocol) ProducedBlock(block Block, env Environment) {
	switch b := block.(type) {
	case *MicroBlock:
		p.storeBlock(b)
		p.relay(BlockMessage{Block: b}, env)
		p.PrepareNextBlock(env)
	case *MacroBlock:
		signature := p.keyPair.SecretKey().Sign(b.Header.Hash())
		p.multicastToValidators(BlockProposalMessage{Proposal: b, Signature: signature}, env)
		p.ProcessedProposal(b, signature, env)
	}
}

// producerAt elects the leader for a slot and view: the hash of the previous
// block's seed concatenated with the view number, interpreted as a big
// integer modulo the validator count.
func (p *HonestProtocol) producerAt(blockNumber uint32, viewNumber uint16) crypto.PublicKey {
	if blockNumber <= p.lastMacroBlockNumber() {
		panic("protocol: leader election before the last macro block")
	}

	previous := p.chain[blockNumber-1]
	digest := crypto.NewHasher().
		Write(previous.Seed().Hash().Bytes()).
		WriteUint16(viewNumber).
		Sum()

	r := new(big.Int).SetBytes(digest.Bytes())
	r.Mod(r, big.NewInt(int64(len(p.validators))))
	return p.validators[r.Int64()]
}

// relay announces an event to all peers.
func (p *HonestProtocol) relay(msg Message, env Environment) {
	env.Broadcast(msg)
}

// multicastToValidators sends an event to all validators. With the simulated
// topologies every peer is a validator, so this is a broadcast.
func (p *HonestProtocol) multicastToValidators(msg Message, env Environment) {
	env.Broadcast(msg)
}

// Chain returns the committed chain, genesis first.
func (p *HonestProtocol) Chain() []Block { return p.chain }

// ViewNumber returns the current view for the pending slot.
func (p *HonestProtocol) ViewNumber() uint16 { return p.viewChangeState.ViewNumber }

// MacroPhase returns the PBFT phase of the pending macro block.
func (p *HonestProtocol) MacroPhase() Phase { return p.macroBlockState.Phase }

// NumKnownBlocks returns the number of distinct block hashes seen.
func (p *HonestProtocol) NumKnownBlocks() int { return len(p.knownBlocks) }

// Validators returns the current validator set.
func (p *HonestProtocol) Validators() []crypto.PublicKey { return p.validators }
