// Package config loads the simulator's TOML settings: protocol parameters,
// cryptographic timing estimates and, optionally, the network topology
// distributions.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nimiq/albatross-simulator/network"
	"github.com/nimiq/albatross-simulator/protocol"
)

// Config holds all file-based simulator settings. Node counts, block counts
// and iteration counts come from the command line.
type Config struct {
	Protocol ProtocolSettings `toml:"protocol"`
	Timing   TimingSettings   `toml:"timing"`
	// Network is optional; when absent the simulator uses the fully-connected
	// constant-delay topology.
	Network *NetworkSettings `toml:"network"`
}

// ProtocolSettings configures the consensus protocol. Timeouts are in
// microseconds.
type ProtocolSettings struct {
	MicroBlockTimeout uint64 `toml:"micro-block-timeout"`
	MacroBlockTimeout uint64 `toml:"macro-block-timeout"`
	NumMicroBlocks    uint32 `toml:"num-micro-blocks"`
}

// ToConfig converts the settings into a protocol config for a validator set
// of the given size.
func (s ProtocolSettings) ToConfig(numValidators uint16) protocol.Config {
	return protocol.Config{
		MicroBlockTimeout: time.Duration(s.MicroBlockTimeout) * time.Microsecond,
		MacroBlockTimeout: time.Duration(s.MacroBlockTimeout) * time.Microsecond,
		NumMicroBlocks:    s.NumMicroBlocks,
		NumValidators:     numValidators,
	}
}

// TimingSettings configures the modeled cost of cryptographic operations, in
// microseconds.
type TimingSettings struct {
	Signing           uint64 `toml:"signing"`
	Verification      uint64 `toml:"verification"`
	BatchVerification uint64 `toml:"batch-verification"`

	GenerateAggregateSignatureSameMessage     uint64 `toml:"generate-aggregate-signature-same-message"`
	GenerateAggregateSignatureDistinctMessage uint64 `toml:"generate-aggregate-signature-distinct-message"`
	GenerateAggregatePublicKey                uint64 `toml:"generate-aggregate-public-key"`
	VerifyAggregateSignatureSameMessage       uint64 `toml:"verify-aggregate-signature-same-message"`
	VerifyAggregateSignatureDistinctMessage   uint64 `toml:"verify-aggregate-signature-distinct-message"`
}

// ToTiming converts the settings into the protocol's timing model.
func (s TimingSettings) ToTiming() protocol.Timing {
	us := func(v uint64) time.Duration { return time.Duration(v) * time.Microsecond }
	return protocol.Timing{
		Signing:           us(s.Signing),
		Verification:      us(s.Verification),
		BatchVerification: us(s.BatchVerification),

		GenerateAggregateSignatureSameMessage:     us(s.GenerateAggregateSignatureSameMessage),
		GenerateAggregateSignatureDistinctMessage: us(s.GenerateAggregateSignatureDistinctMessage),
		GenerateAggregatePublicKey:                us(s.GenerateAggregatePublicKey),
		VerifyAggregateSignatureSameMessage:       us(s.VerifyAggregateSignatureSameMessage),
		VerifyAggregateSignatureDistinctMessage:   us(s.VerifyAggregateSignatureDistinctMessage),
	}
}

// NetworkSettings configures the region-aware topology distributions.
type NetworkSettings struct {
	Main    MainSettings              `toml:"main"`
	Regions map[string]RegionSettings `toml:"regions"`
}

// MainSettings holds the distribution parameters shared by all regions.
type MainSettings struct {
	Regions            []string  `toml:"regions"`
	RegionDistribution []float64 `toml:"region-distribution"`

	ConnectionsDistributionIntervals []float64 `toml:"connections-distribution-intervals"`
	ConnectionsDistributionWeights   []uint64  `toml:"connections-distribution-weights"`

	DownloadBandwidthIntervals []float64 `toml:"download-bandwidth-intervals"`
	UploadBandwidthIntervals   []float64 `toml:"upload-bandwidth-intervals"`

	MinConnectionsPerNode int `toml:"min-connections-per-node"`
	MaxConnectionsPerNode int `toml:"max-connections-per-node"`

	LatencyParetoShapeDivider float64 `toml:"latency-pareto-shape-divider"`
}

// RegionSettings holds the per-region latencies and bandwidth weights.
type RegionSettings struct {
	Latencies                []float64 `toml:"latencies"`
	DownloadBandwidthWeights []uint64  `toml:"download-bandwidth-weights"`
	UploadBandwidthWeights   []uint64  `toml:"upload-bandwidth-weights"`
}

// DefaultConfig returns settings for a small development simulation.
func DefaultConfig() *Config {
	return &Config{
		Protocol: ProtocolSettings{
			MicroBlockTimeout: 500_000,
			MacroBlockTimeout: 1_000_000,
			NumMicroBlocks:    4,
		},
		Timing: TimingSettings{
			Signing:           50,
			Verification:      150,
			BatchVerification: 80,

			GenerateAggregateSignatureSameMessage:     20,
			GenerateAggregateSignatureDistinctMessage: 40,
			GenerateAggregatePublicKey:                15,
			VerifyAggregateSignatureSameMessage:       60,
			VerifyAggregateSignatureDistinctMessage:   120,
		},
	}
}

// Load reads a TOML config file from path and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if c.Protocol.MicroBlockTimeout == 0 || c.Protocol.MacroBlockTimeout == 0 {
		return fmt.Errorf("protocol timeouts must be positive")
	}
	if c.Network != nil {
		return c.Network.Validate()
	}
	return nil
}

// Validate checks the cross-field consistency rules of the network settings.
func (n *NetworkSettings) Validate() error {
	main := &n.Main
	if len(main.Regions) != len(main.RegionDistribution) {
		return fmt.Errorf("|main.regions| != |main.region-distribution|")
	}
	if len(main.Regions) != len(n.Regions) {
		return fmt.Errorf("|regions| != |main.regions|")
	}
	if len(main.ConnectionsDistributionIntervals) != len(main.ConnectionsDistributionWeights)+1 {
		return fmt.Errorf("|main.connections-distribution-intervals| != |main.connections-distribution-weights| + 1")
	}
	for _, name := range main.Regions {
		region, ok := n.Regions[name]
		if !ok {
			return fmt.Errorf("region %q missing", name)
		}
		if len(region.Latencies) != len(main.Regions) {
			return fmt.Errorf("|%s.latencies| != |main.regions|", name)
		}
		if len(main.DownloadBandwidthIntervals) != len(region.DownloadBandwidthWeights)+1 {
			return fmt.Errorf("|main.download-bandwidth-intervals| != |%s.download-bandwidth-weights| + 1", name)
		}
		if len(main.UploadBandwidthIntervals) != len(region.UploadBandwidthWeights)+1 {
			return fmt.Errorf("|main.upload-bandwidth-intervals| != |%s.upload-bandwidth-weights| + 1", name)
		}
	}
	return nil
}

// ToSpec converts validated network settings into a sampling spec.
func (n *NetworkSettings) ToSpec() network.TopologySpec {
	regions := make([]network.RegionSpec, len(n.Main.Regions))
	for i, name := range n.Main.Regions {
		settings := n.Regions[name]
		regions[i] = network.RegionSpec{
			Name:                     name,
			Latencies:                settings.Latencies,
			DownloadBandwidthWeights: settings.DownloadBandwidthWeights,
			UploadBandwidthWeights:   settings.UploadBandwidthWeights,
		}
	}
	return network.TopologySpec{
		Regions:                    regions,
		RegionDistribution:         n.Main.RegionDistribution,
		ConnectionsIntervals:       n.Main.ConnectionsDistributionIntervals,
		ConnectionsWeights:         n.Main.ConnectionsDistributionWeights,
		DownloadBandwidthIntervals: n.Main.DownloadBandwidthIntervals,
		UploadBandwidthIntervals:   n.Main.UploadBandwidthIntervals,
		MinConnectionsPerNode:      n.Main.MinConnectionsPerNode,
		MaxConnectionsPerNode:      n.Main.MaxConnectionsPerNode,
		LatencyParetoShapeDivider:  n.Main.LatencyParetoShapeDivider,
	}
}
