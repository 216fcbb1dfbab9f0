package network

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/node"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

// RegionSpec describes one geographic region.
type RegionSpec struct {
	Name string
	// Latencies holds the one-way latency in milliseconds to every region,
	// indexed like TopologySpec.Regions.
	Latencies []float64
	// DownloadBandwidthWeights / UploadBandwidthWeights weight the shared
	// bandwidth intervals for nodes in this region.
	DownloadBandwidthWeights []uint64
	UploadBandwidthWeights   []uint64
}

// TopologySpec describes how to sample a region/bandwidth-aware topology.
type TopologySpec struct {
	Regions            []RegionSpec
	RegionDistribution []float64

	ConnectionsIntervals []float64
	ConnectionsWeights   []uint64

	// Bandwidth intervals in Mbit/s, shared by all regions.
	DownloadBandwidthIntervals []float64
	UploadBandwidthIntervals   []float64

	MinConnectionsPerNode int
	MaxConnectionsPerNode int

	// LatencyParetoShapeDivider controls latency jitter: the sampled latency
	// follows a Pareto distribution with scale equal to the configured
	// latency and shape latency/divider. Zero disables jitter.
	LatencyParetoShapeDivider float64
}

type regionNode struct {
	region       int
	downloadMbps float64
	uploadMbps   float64
}

// RegionNetwork is a partially-connected network whose adjacency, bandwidth
// and latencies are sampled once at construction from a seeded source. Delay
// on a link is size*8/bandwidth plus the link latency.
type RegionNetwork struct {
	nodes     []regionNode
	adjacency [][]sim.NodeID
	latency   []map[sim.NodeID]time.Duration

	simulationConfig node.SimulationConfig
	protocolConfig   protocol.Config
	timing           protocol.Timing
	genesis          *protocol.MacroBlock
}

// NewRegionNetwork samples a topology for numNodes nodes from spec using rng.
// The same seed reproduces the same topology.
func NewRegionNetwork(numNodes int, spec TopologySpec,
	simulationConfig node.SimulationConfig, protocolConfig protocol.Config,
	timing protocol.Timing, genesis *protocol.MacroBlock, rng *rand.Rand) (*RegionNetwork, error) {
	if len(spec.Regions) == 0 {
		return nil, fmt.Errorf("region network: no regions configured")
	}
	if len(spec.RegionDistribution) != len(spec.Regions) {
		return nil, fmt.Errorf("region network: %d region weights for %d regions",
			len(spec.RegionDistribution), len(spec.Regions))
	}

	connections, err := NewPiecewiseConstant(spec.ConnectionsWeights, spec.ConnectionsIntervals)
	if err != nil {
		return nil, fmt.Errorf("connections distribution: %w", err)
	}

	download := make([]*PiecewiseConstant, len(spec.Regions))
	upload := make([]*PiecewiseConstant, len(spec.Regions))
	for i, region := range spec.Regions {
		if len(region.Latencies) != len(spec.Regions) {
			return nil, fmt.Errorf("region %q: %d latencies for %d regions",
				region.Name, len(region.Latencies), len(spec.Regions))
		}
		if download[i], err = NewPiecewiseConstant(region.DownloadBandwidthWeights, spec.DownloadBandwidthIntervals); err != nil {
			return nil, fmt.Errorf("region %q download distribution: %w", region.Name, err)
		}
		if upload[i], err = NewPiecewiseConstant(region.UploadBandwidthWeights, spec.UploadBandwidthIntervals); err != nil {
			return nil, fmt.Errorf("region %q upload distribution: %w", region.Name, err)
		}
	}

	n := &RegionNetwork{
		nodes:            make([]regionNode, numNodes),
		adjacency:        make([][]sim.NodeID, numNodes),
		latency:          make([]map[sim.NodeID]time.Duration, numNodes),
		simulationConfig: simulationConfig,
		protocolConfig:   protocolConfig,
		timing:           timing,
		genesis:          genesis,
	}

	// Assign regions and bandwidths.
	for i := range n.nodes {
		region := sampleWeighted(rng, spec.RegionDistribution)
		n.nodes[i] = regionNode{
			region:       region,
			downloadMbps: download[region].Sample(rng),
			uploadMbps:   upload[region].Sample(rng),
		}
		n.latency[i] = make(map[sim.NodeID]time.Duration)
	}

	// Sample an undirected connection graph: every node draws a target degree
	// and connects to distinct random peers until its link count, including
	// links made by earlier nodes, reaches it; links are duplex.
	for i := 0; i < numNodes; i++ {
		degree := int(connections.Sample(rng))
		if degree < spec.MinConnectionsPerNode {
			degree = spec.MinConnectionsPerNode
		}
		if degree > spec.MaxConnectionsPerNode {
			degree = spec.MaxConnectionsPerNode
		}
		if degree > numNodes-1 {
			degree = numNodes - 1
		}
		for len(n.latency[i]) < degree {
			peer := sim.NodeID(rng.Intn(numNodes))
			if int(peer) == i {
				continue
			}
			if _, ok := n.latency[i][peer]; ok {
				continue
			}
			n.addLink(sim.NodeID(i), peer, spec, rng)
			n.addLink(peer, sim.NodeID(i), spec, rng)
		}
	}

	for i := range n.latency {
		for peer := range n.latency[i] {
			n.adjacency[i] = append(n.adjacency[i], peer)
		}
		// Map iteration order is random; keep adjacency deterministic.
		peers := n.adjacency[i]
		sort.Slice(peers, func(a, b int) bool { return peers[a] < peers[b] })
	}

	return n, nil
}

func (n *RegionNetwork) addLink(from, to sim.NodeID, spec TopologySpec, rng *rand.Rand) {
	if _, ok := n.latency[from][to]; ok {
		return
	}
	base := spec.Regions[n.nodes[from].region].Latencies[n.nodes[to].region]
	if spec.LatencyParetoShapeDivider > 0 {
		base = samplePareto(rng, base, base/spec.LatencyParetoShapeDivider)
	}
	n.latency[from][to] = time.Duration(base * float64(time.Millisecond))
}

// sampleWeighted picks an index with probability proportional to its weight.
func sampleWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	pick := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if pick < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// NumNodes implements sim.Topology.
func (n *RegionNetwork) NumNodes() int { return len(n.nodes) }

// Adjacent implements sim.Topology.
func (n *RegionNetwork) Adjacent(from sim.NodeID) []sim.NodeID {
	return n.adjacency[from]
}

// sized is satisfied by payloads that know their serialized size.
type sized interface {
	Size() int
}

// TransmissionDelay implements sim.Topology: serialization time at the
// bottleneck bandwidth of the link plus the sampled latency.
func (n *RegionNetwork) TransmissionDelay(from, to sim.NodeID, payload any) (time.Duration, bool) {
	latency, ok := n.latency[from][to]
	if !ok {
		return 0, false
	}

	size := 0
	if s, ok := payload.(sized); ok {
		size = s.Size()
	}
	bandwidth := n.nodes[from].uploadMbps
	if down := n.nodes[to].downloadMbps; down < bandwidth {
		bandwidth = down
	}
	transmission := time.Duration(float64(size*8) / (bandwidth * 1e6) * float64(time.Second))
	return transmission + latency, true
}

// NewNode implements sim.Topology.
func (n *RegionNetwork) NewNode(id sim.NodeID) sim.Node {
	return node.NewHonest(n.simulationConfig, n.protocolConfig, n.timing,
		n.genesis, crypto.KeyPairFromID(uint64(id)))
}

// NodeRegion returns the region index assigned to a node.
func (n *RegionNetwork) NodeRegion(id sim.NodeID) int { return n.nodes[id].region }
