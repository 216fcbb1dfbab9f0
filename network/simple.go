// Package network provides the simulated topologies: a fully-connected
// constant-delay network and a region/bandwidth-aware network whose links are
// sampled from configured distributions.
package network

import (
	"time"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/node"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

// SimpleNetwork is a fully-connected network of honest validators with a
// constant transmission delay on every link.
type SimpleNetwork struct {
	numNodes int
	delay    time.Duration

	simulationConfig node.SimulationConfig
	protocolConfig   protocol.Config
	timing           protocol.Timing
	genesis          *protocol.MacroBlock

	// dropOutgoing suppresses all outgoing links of the named nodes, which
	// models an unreachable (e.g. crashed) leader.
	dropOutgoing map[sim.NodeID]bool
}

// NewSimpleNetwork creates a fully-connected constant-delay topology.
func NewSimpleNetwork(numNodes int, delay time.Duration,
	simulationConfig node.SimulationConfig, protocolConfig protocol.Config,
	timing protocol.Timing, genesis *protocol.MacroBlock) *SimpleNetwork {
	return &SimpleNetwork{
		numNodes:         numNodes,
		delay:            delay,
		simulationConfig: simulationConfig,
		protocolConfig:   protocolConfig,
		timing:           timing,
		genesis:          genesis,
		dropOutgoing:     make(map[sim.NodeID]bool),
	}
}

// DropOutgoing removes all outgoing links of id. Sends from that node are
// dropped by the engine from then on.
func (n *SimpleNetwork) DropOutgoing(id sim.NodeID) {
	n.dropOutgoing[id] = true
}

// NumNodes implements sim.Topology.
func (n *SimpleNetwork) NumNodes() int { return n.numNodes }

// Adjacent implements sim.Topology. Every node is adjacent to every other.
func (n *SimpleNetwork) Adjacent(from sim.NodeID) []sim.NodeID {
	peers := make([]sim.NodeID, 0, n.numNodes-1)
	for i := 0; i < n.numNodes; i++ {
		if sim.NodeID(i) != from {
			peers = append(peers, sim.NodeID(i))
		}
	}
	return peers
}

// TransmissionDelay implements sim.Topology.
func (n *SimpleNetwork) TransmissionDelay(from, to sim.NodeID, _ any) (time.Duration, bool) {
	if from == to || n.dropOutgoing[from] {
		return 0, false
	}
	return n.delay, true
}

// NewNode implements sim.Topology. Validator keys are derived from the node
// identity.
func (n *SimpleNetwork) NewNode(id sim.NodeID) sim.Node {
	return node.NewHonest(n.simulationConfig, n.protocolConfig, n.timing,
		n.genesis, crypto.KeyPairFromID(uint64(id)))
}

// GenesisValidators derives the validator set for a network of the given
// size: one validator per node, keys derived from the identities.
func GenesisValidators(numNodes int) []crypto.PublicKey {
	validators := make([]crypto.PublicKey, numNodes)
	for i := range validators {
		validators[i] = crypto.KeyPairFromID(uint64(i)).PublicKey()
	}
	return validators
}
