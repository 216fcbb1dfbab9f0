package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimiq/albatross-simulator/config"
)

const sampleConfig = `
[protocol]
micro-block-timeout = 250000
macro-block-timeout = 750000
num-micro-blocks = 9

[timing]
signing = 40
verification = 120
batch-verification = 60
generate-aggregate-signature-same-message = 10
generate-aggregate-signature-distinct-message = 25
generate-aggregate-public-key = 8
verify-aggregate-signature-same-message = 45
verify-aggregate-signature-distinct-message = 90

[network.main]
regions = ["eu", "us"]
region-distribution = [0.6, 0.4]
connections-distribution-intervals = [2.0, 4.0, 8.0]
connections-distribution-weights = [3, 1]
download-bandwidth-intervals = [50.0, 100.0]
upload-bandwidth-intervals = [20.0, 40.0]
min-connections-per-node = 2
max-connections-per-node = 6
latency-pareto-shape-divider = 5.0

[network.regions.eu]
latencies = [5.0, 120.0]
download-bandwidth-weights = [1]
upload-bandwidth-weights = [1]

[network.regions.us]
latencies = [120.0, 10.0]
download-bandwidth-weights = [1]
upload-bandwidth-weights = [1]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, uint32(9), cfg.Protocol.NumMicroBlocks)

	protoCfg := cfg.Protocol.ToConfig(5)
	assert.Equal(t, 250*time.Millisecond, protoCfg.MicroBlockTimeout)
	assert.Equal(t, 750*time.Millisecond, protoCfg.MacroBlockTimeout)
	assert.Equal(t, uint16(5), protoCfg.NumValidators)

	timing := cfg.Timing.ToTiming()
	assert.Equal(t, 40*time.Microsecond, timing.Signing)
	assert.Equal(t, 90*time.Microsecond, timing.VerifyAggregateSignatureDistinctMessage)

	require.NotNil(t, cfg.Network)
	spec := cfg.Network.ToSpec()
	require.Len(t, spec.Regions, 2)
	assert.Equal(t, "eu", spec.Regions[0].Name)
	assert.Equal(t, []float64{5, 120}, spec.Regions[0].Latencies)
	assert.Equal(t, 2, spec.MinConnectionsPerNode)
	assert.Equal(t, 5.0, spec.LatencyParetoShapeDivider)
}

func TestLoadWithoutNetworkSectionUsesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "[protocol]\nnum-micro-blocks = 3\n"))
	require.NoError(t, err)

	assert.Nil(t, cfg.Network)
	assert.Equal(t, uint32(3), cfg.Protocol.NumMicroBlocks)
	// Unset fields fall back to the defaults.
	assert.Equal(t, config.DefaultConfig().Protocol.MicroBlockTimeout, cfg.Protocol.MicroBlockTimeout)
}

func TestValidateRejectsInconsistentNetwork(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s string) string
	}{
		{"region weight mismatch", func(s string) string {
			return replaceLine(s, `region-distribution = [0.6, 0.4]`, `region-distribution = [1.0]`)
		}},
		{"latency length mismatch", func(s string) string {
			return replaceLine(s, `latencies = [5.0, 120.0]`, `latencies = [5.0]`)
		}},
		{"connection interval mismatch", func(s string) string {
			return replaceLine(s, `connections-distribution-weights = [3, 1]`, `connections-distribution-weights = [3]`)
		}},
		{"bandwidth weight mismatch", func(s string) string {
			return replaceLine(s, "[network.regions.us]\nlatencies = [120.0, 10.0]\ndownload-bandwidth-weights = [1]",
				"[network.regions.us]\nlatencies = [120.0, 10.0]\ndownload-bandwidth-weights = [1, 2]")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.mutate(sampleConfig)))
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsMissingRegionTable(t *testing.T) {
	broken := replaceLine(sampleConfig, `regions = ["eu", "us"]`, `regions = ["eu", "asia"]`)
	_, err := config.Load(writeConfig(t, broken))
	assert.Error(t, err)
}

func TestValidateRejectsZeroTimeouts(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[protocol]\nmicro-block-timeout = 0\n"))
	assert.Error(t, err)
}

func replaceLine(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
