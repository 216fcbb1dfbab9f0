package sim

import "time"

// Topology is the static-during-a-run description of the network: how many
// nodes exist, which links they have, how long a transmission takes, and how
// to instantiate each node's behavior.
type Topology interface {
	// NumNodes returns the number of nodes in the network.
	NumNodes() int

	// Adjacent returns the peers of from. Links are not necessarily duplex.
	Adjacent(from NodeID) []NodeID

	// TransmissionDelay returns the time it takes to transmit payload from one
	// node to another, covering both latency and serialization time. The
	// second return value is false when no link exists; the engine then drops
	// the send.
	TransmissionDelay(from, to NodeID, payload any) (time.Duration, bool)

	// NewNode instantiates the behavior for the node with the given identity.
	NewNode(id NodeID) Node
}
