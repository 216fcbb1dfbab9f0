package network_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/internal/testutil"
	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/network"
	"github.com/nimiq/albatross-simulator/node"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
	"github.com/nimiq/albatross-simulator/storage"
)

const linkDelay = 100 * time.Millisecond

// setup builds a fully-connected honest network and its simulator.
func setup(t *testing.T, numNodes int, blocks, numMicroBlocks uint32) (*sim.Simulator, *network.SimpleNetwork, *metrics.Recorder) {
	t.Helper()
	genesis := testutil.Genesis(numNodes)
	cfg := testutil.ProtocolConfig(numNodes)
	cfg.NumMicroBlocks = numMicroBlocks

	topo := network.NewSimpleNetwork(numNodes, linkDelay,
		node.SimulationConfig{Blocks: blocks}, cfg, protocol.DefaultTiming(), genesis)
	recorder := metrics.NewRecorder()
	s := sim.New(topo, recorder)
	s.Build()
	for i := 0; i < numNodes; i++ {
		s.ScheduleInitial(sim.NodeID(i), protocol.Init{})
	}
	return s, topo, recorder
}

// chainOf returns the committed chain of a node after a run.
func chainOf(t *testing.T, s *sim.Simulator, id sim.NodeID) []protocol.Block {
	t.Helper()
	honest, ok := s.Node(id).(*node.Honest)
	require.True(t, ok)
	return honest.Protocol().Chain()
}

// leaderIndexFor recomputes the deterministic leader election for the slot
// following parent.
func leaderIndexFor(parent protocol.Block, numValidators int, view uint16) int {
	digest := crypto.NewHasher().
		Write(parent.Seed().Hash().Bytes()).
		WriteUint16(view).
		Sum()
	r := new(big.Int).SetBytes(digest.Bytes())
	r.Mod(r, big.NewInt(int64(numValidators)))
	return int(r.Int64())
}

func TestFullRunProducesTenBlocks(t *testing.T) {
	s, _, _ := setup(t, 3, 10, 4)
	assert.False(t, s.Run(), "a node votes to stop at the target length")

	longest := 0
	for id := 0; id < 3; id++ {
		chain := chainOf(t, s, sim.NodeID(id))
		if len(chain) > longest {
			longest = len(chain)
		}

		// Chain invariant: block numbers equal indexes, macro blocks exactly
		// at epoch boundaries.
		for i, block := range chain {
			assert.Equal(t, uint32(i), block.Number())
			if i%5 == 0 {
				require.Equal(t, protocol.BlockTypeMacro, block.Type(), "index %d", i)
				macro := block.(*protocol.MacroBlock)
				if i > 0 {
					assert.NotNil(t, macro.Justification, "committed macro block %d needs a justification", i)
				}
			} else {
				assert.Equal(t, protocol.BlockTypeMicro, block.Type(), "index %d", i)
			}
		}
	}
	assert.Equal(t, 11, longest, "the stopping node holds genesis plus 10 blocks")
}

func TestMacroFinalityAcrossNodes(t *testing.T) {
	s, _, _ := setup(t, 3, 12, 4)
	s.Run()

	// The macro subsequence of every chain is a prefix of every other's.
	macroChains := make([][]crypto.Hash, 3)
	for id := 0; id < 3; id++ {
		for _, block := range chainOf(t, s, sim.NodeID(id)) {
			if block.Type() == protocol.BlockTypeMacro {
				macroChains[id] = append(macroChains[id], block.Hash())
			}
		}
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			shorter, longer := macroChains[a], macroChains[b]
			if len(shorter) > len(longer) {
				shorter, longer = longer, shorter
			}
			for i := range shorter {
				assert.Equal(t, longer[i], shorter[i],
					"macro block %d differs between nodes %d and %d", i, a, b)
			}
		}
	}
}

func TestBlockPropagationTiming(t *testing.T) {
	// Three micro blocks only: every announcement crosses one constant-delay
	// link, so first receptions happen exactly one link delay after
	// production.
	s, _, recorder := setup(t, 3, 3, 4)
	s.Run()

	report := recorder.Analyze()
	require.Greater(t, report.BlockPropagation.Count, 0)
	assert.Equal(t, linkDelay, report.BlockPropagation.Min)
	assert.Equal(t, linkDelay, report.BlockPropagation.Max)
	assert.GreaterOrEqual(t, report.BlocksProduced, 3)
}

func TestLeaderAbsenceTriggersViewChange(t *testing.T) {
	genesis := testutil.Genesis(3)
	cfg := testutil.ProtocolConfig(3)

	topo := network.NewSimpleNetwork(3, linkDelay,
		node.SimulationConfig{Blocks: 2}, cfg, protocol.DefaultTiming(), genesis)
	recorder := metrics.NewRecorder()
	s := sim.New(topo, recorder)
	s.Build()

	// The leader of slot 1 at view 0 is absent: it is never bootstrapped and
	// its outgoing links are cut. The others must time out and change views
	// until a reachable leader is elected.
	absent := leaderIndexFor(genesis, 3, 0)
	topo.DropOutgoing(sim.NodeID(absent))
	for i := 0; i < 3; i++ {
		if i != absent {
			s.ScheduleInitial(sim.NodeID(i), protocol.Init{})
		}
	}

	s.Run()

	// Some honest node committed slot 1 in a view greater than zero.
	replaced := false
	for id := 0; id < 3; id++ {
		if id == absent {
			continue
		}
		chain := chainOf(t, s, sim.NodeID(id))
		if len(chain) > 1 && chain[1].ViewNumber() > 0 {
			replaced = true
		}
	}
	assert.True(t, replaced, "slot 1 must be filled in a later view")

	// The first micro block timeout fires exactly one timeout period after
	// the start, and view change votes circulate.
	sawTimeout := false
	sawViewChange := false
	for _, te := range recorder.Events() {
		ev, ok := te.Event.(metrics.MessageEvent)
		if !ok {
			continue
		}
		switch payload := ev.Payload.(type) {
		case protocol.MicroBlockTimeout:
			if payload.BlockNumber == 1 && payload.ViewNumber == 0 {
				sawTimeout = true
				assert.Equal(t, sim.Time(0).Add(500*time.Millisecond), te.Time)
			}
		case protocol.ViewChangeMessage:
			sawViewChange = true
		}
	}
	assert.True(t, sawTimeout)
	assert.True(t, sawViewChange)
}

func TestMacroCommitRecordsAcceptance(t *testing.T) {
	s, _, recorder := setup(t, 3, 6, 4)
	s.Run()

	// MacroBlockAccepted is noted at most once per node for block 5.
	acceptedBy := make(map[sim.NodeID]int)
	for _, te := range recorder.Events() {
		if ev, ok := te.Event.(protocol.MacroBlockAccepted); ok {
			require.Equal(t, uint32(5), ev.Block.Number())
			require.NotNil(t, ev.Block.Justification)
			acceptedBy[ev.Node]++
		}
	}
	require.NotEmpty(t, acceptedBy, "at least one node commits the macro block")
	for id, count := range acceptedBy {
		assert.Equal(t, 1, count, "node %d must accept the macro block exactly once", id)
	}

	report := recorder.Analyze()
	assert.Equal(t, len(acceptedBy), report.MacroBlocksAccepted)
}

func TestDeterministicReplayProducesEqualTraces(t *testing.T) {
	run := func() []storage.TraceRecord {
		s, _, recorder := setup(t, 3, 10, 4)
		s.Run()
		return storage.TraceFromRecorder(recorder)
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.True(t, storage.EqualTraces(first, second),
		"identical inputs must produce identical event traces")
}

func TestSimpleNetworkTopologyContract(t *testing.T) {
	genesis := testutil.Genesis(3)
	topo := network.NewSimpleNetwork(3, linkDelay, node.SimulationConfig{Blocks: 1},
		testutil.ProtocolConfig(3), protocol.DefaultTiming(), genesis)

	assert.Equal(t, 3, topo.NumNodes())
	assert.Equal(t, []sim.NodeID{1, 2}, topo.Adjacent(0))
	assert.Equal(t, []sim.NodeID{0, 2}, topo.Adjacent(1))

	delay, ok := topo.TransmissionDelay(0, 1, nil)
	require.True(t, ok)
	assert.Equal(t, linkDelay, delay)

	_, ok = topo.TransmissionDelay(0, 0, nil)
	assert.False(t, ok, "no self links")

	topo.DropOutgoing(1)
	_, ok = topo.TransmissionDelay(1, 0, nil)
	assert.False(t, ok)
	delay, ok = topo.TransmissionDelay(0, 1, nil)
	require.True(t, ok, "incoming links survive DropOutgoing")
	assert.Equal(t, linkDelay, delay)
}
