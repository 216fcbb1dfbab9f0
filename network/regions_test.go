package network_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimiq/albatross-simulator/internal/testutil"
	"github.com/nimiq/albatross-simulator/network"
	"github.com/nimiq/albatross-simulator/node"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

func testSpec() network.TopologySpec {
	return network.TopologySpec{
		Regions: []network.RegionSpec{
			{
				Name:                     "eu",
				Latencies:                []float64{5, 120},
				DownloadBandwidthWeights: []uint64{1},
				UploadBandwidthWeights:   []uint64{1},
			},
			{
				Name:                     "us",
				Latencies:                []float64{120, 10},
				DownloadBandwidthWeights: []uint64{1},
				UploadBandwidthWeights:   []uint64{1},
			},
		},
		RegionDistribution:         []float64{0.5, 0.5},
		ConnectionsIntervals:       []float64{2, 5},
		ConnectionsWeights:         []uint64{1},
		DownloadBandwidthIntervals: []float64{50, 100},
		UploadBandwidthIntervals:   []float64{20, 40},
		MinConnectionsPerNode:      2,
		MaxConnectionsPerNode:      4,
	}
}

func newRegionNetwork(t *testing.T, numNodes int, seed int64) *network.RegionNetwork {
	t.Helper()
	genesis := testutil.Genesis(numNodes)
	topo, err := network.NewRegionNetwork(numNodes, testSpec(),
		node.SimulationConfig{Blocks: 2}, testutil.ProtocolConfig(numNodes),
		protocol.DefaultTiming(), genesis, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return topo
}

func TestRegionNetworkSamplingIsSeedDeterministic(t *testing.T) {
	a := newRegionNetwork(t, 8, 1)
	b := newRegionNetwork(t, 8, 1)

	for i := 0; i < 8; i++ {
		id := sim.NodeID(i)
		assert.Equal(t, a.Adjacent(id), b.Adjacent(id), "adjacency of node %d", i)
		assert.Equal(t, a.NodeRegion(id), b.NodeRegion(id), "region of node %d", i)
		for _, peer := range a.Adjacent(id) {
			da, oka := a.TransmissionDelay(id, peer, nil)
			db, okb := b.TransmissionDelay(id, peer, nil)
			require.True(t, oka)
			require.True(t, okb)
			assert.Equal(t, da, db)
		}
	}
}

func TestRegionNetworkLinksAreDuplexAndBounded(t *testing.T) {
	topo := newRegionNetwork(t, 8, 3)
	for i := 0; i < 8; i++ {
		id := sim.NodeID(i)
		peers := topo.Adjacent(id)
		assert.GreaterOrEqual(t, len(peers), 2, "node %d below minimum degree", i)
		for _, peer := range peers {
			_, ok := topo.TransmissionDelay(id, peer, nil)
			assert.True(t, ok)
			_, ok = topo.TransmissionDelay(peer, id, nil)
			assert.True(t, ok, "link %d->%d is not duplex", peer, id)
		}
	}
}

func TestRegionNetworkDelayModel(t *testing.T) {
	topo := newRegionNetwork(t, 4, 5)
	id := sim.NodeID(0)
	peers := topo.Adjacent(id)
	require.NotEmpty(t, peers)
	peer := peers[0]

	latency, ok := topo.TransmissionDelay(id, peer, nil)
	require.True(t, ok, "zero-size payload delay is pure latency")
	assert.Greater(t, latency, time.Duration(0))

	// A payload adds size*8/bandwidth on top of the latency. Bandwidth is at
	// most 100 Mbit/s down / 40 Mbit/s up, at least 20 Mbit/s up.
	payload := protocol.TransactionMessage{}
	withPayload, ok := topo.TransmissionDelay(id, peer, payload)
	require.True(t, ok)
	assert.Greater(t, withPayload, latency)

	bits := float64(payload.Size() * 8)
	minTransmission := time.Duration(bits / (100e6) * float64(time.Second))
	maxTransmission := time.Duration(bits / (20e6) * float64(time.Second))
	assert.GreaterOrEqual(t, withPayload-latency, minTransmission)
	assert.LessOrEqual(t, withPayload-latency, maxTransmission)
}

func TestRegionNetworkMissingLink(t *testing.T) {
	topo := newRegionNetwork(t, 8, 11)
	id := sim.NodeID(0)
	linked := make(map[sim.NodeID]bool)
	for _, peer := range topo.Adjacent(id) {
		linked[peer] = true
	}
	for i := 0; i < 8; i++ {
		peer := sim.NodeID(i)
		if peer == id || linked[peer] {
			continue
		}
		_, ok := topo.TransmissionDelay(id, peer, nil)
		assert.False(t, ok, "no link 0->%d expected", i)
	}
	_, ok := topo.TransmissionDelay(id, id, nil)
	assert.False(t, ok, "no self link")
}

func TestRegionNetworkValidatesSpec(t *testing.T) {
	spec := testSpec()
	spec.RegionDistribution = []float64{1}
	_, err := network.NewRegionNetwork(4, spec, node.SimulationConfig{Blocks: 1},
		testutil.ProtocolConfig(4), protocol.DefaultTiming(), testutil.Genesis(4),
		rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	spec = testSpec()
	spec.Regions[0].Latencies = []float64{5}
	_, err = network.NewRegionNetwork(4, spec, node.SimulationConfig{Blocks: 1},
		testutil.ProtocolConfig(4), protocol.DefaultTiming(), testutil.Genesis(4),
		rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}
