package protocol

import "github.com/nimiq/albatross-simulator/crypto"

// ViewChangeState tracks the current view for the pending block slot and the
// view-change votes received for each prospective view. Each signer is counted
// at most once per view.
type ViewChangeState struct {
	ViewNumber uint16

	votes map[uint16]map[crypto.PublicKey]ViewChange
}

// NewViewChangeState returns a state at view 0 with no votes.
func NewViewChangeState() *ViewChangeState {
	return &ViewChangeState{votes: make(map[uint16]map[crypto.PublicKey]ViewChange)}
}

// AddVote records a view-change vote, deduplicating by signer.
func (s *ViewChangeState) AddVote(vc ViewChange) {
	bySigner, ok := s.votes[vc.NewViewNumber]
	if !ok {
		bySigner = make(map[crypto.PublicKey]ViewChange)
		s.votes[vc.NewViewNumber] = bySigner
	}
	bySigner[vc.Signer] = vc
}

// NumVotes returns the number of distinct signers voting for the given view.
func (s *ViewChangeState) NumVotes(viewNumber uint16) int {
	return len(s.votes[viewNumber])
}

// VotesFor returns the votes collected for the given view.
func (s *ViewChangeState) VotesFor(viewNumber uint16) map[crypto.PublicKey]ViewChange {
	return s.votes[viewNumber]
}

// Reset clears all votes and returns the view to 0. Called whenever a block
// is stored.
func (s *ViewChangeState) Reset() {
	s.ViewNumber = 0
	s.votes = make(map[uint16]map[crypto.PublicKey]ViewChange)
}

// MacroBlockState tracks PBFT progress for the pending macro block: the
// proposal, the prepare and commit votes (deduplicated by signer) and the
// current phase.
type MacroBlockState struct {
	Phase    Phase
	Proposal *MacroBlock

	prepares map[crypto.PublicKey]PbftProof
	commits  map[crypto.PublicKey]PbftProof
}

// NewMacroBlockState returns a state in the waiting phase.
func NewMacroBlockState() *MacroBlockState {
	return &MacroBlockState{
		prepares: make(map[crypto.PublicKey]PbftProof),
		commits:  make(map[crypto.PublicKey]PbftProof),
	}
}

// AddPrepare records a prepare vote, deduplicating by signer.
func (s *MacroBlockState) AddPrepare(proof PbftProof) {
	s.prepares[proof.Signer()] = proof
}

// NumPrepares returns the number of distinct prepare signers.
func (s *MacroBlockState) NumPrepares() int { return len(s.prepares) }

// Prepares returns the collected prepare votes by signer.
func (s *MacroBlockState) Prepares() map[crypto.PublicKey]PbftProof { return s.prepares }

// AddCommit records a commit vote, deduplicating by signer.
func (s *MacroBlockState) AddCommit(proof PbftProof) {
	s.commits[proof.Signer()] = proof
}

// NumCommits returns the number of distinct commit signers.
func (s *MacroBlockState) NumCommits() int { return len(s.commits) }

// Commits returns the collected commit votes by signer.
func (s *MacroBlockState) Commits() map[crypto.PublicKey]PbftProof { return s.commits }

// Reset clears the proposal and all votes and returns to the waiting phase.
func (s *MacroBlockState) Reset() {
	s.Phase = PhaseWaiting
	s.Proposal = nil
	s.prepares = make(map[crypto.PublicKey]PbftProof)
	s.commits = make(map[crypto.PublicKey]PbftProof)
}
