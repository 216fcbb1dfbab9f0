// Command simulator runs Albatross consensus simulations and reports block
// propagation and commit statistics.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nimiq/albatross-simulator/config"
	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/network"
	"github.com/nimiq/albatross-simulator/node"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
	"github.com/nimiq/albatross-simulator/storage"
)

func main() {
	nodesFlag := flag.String("nodes", "3", "comma-separated node counts to simulate (one run per count)")
	blocks := flag.Uint("blocks", 10, "number of blocks to simulate")
	numMicroBlocks := flag.Uint("num-micro-blocks", 0, "micro blocks between macro blocks (0 = from config)")
	iterations := flag.Int("iterations", 1, "iterations per node count")
	cfgPath := flag.String("config", "config.toml", "path to the TOML settings file")
	netKind := flag.String("network", "simple", "topology kind: simple or regions")
	delayMS := flag.Int("delay", 100, "link delay in ms for the simple network")
	seed := flag.Int64("seed", 1, "seed for topology sampling")
	traceDB := flag.String("trace-db", "", "LevelDB path to store run traces (empty = off)")
	microTimeout := flag.Uint64("micro-block-timeout", 0, "micro block timeout override in µs")
	macroTimeout := flag.Uint64("macro-block-timeout", 0, "macro block timeout override in µs")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if *microTimeout > 0 {
		cfg.Protocol.MicroBlockTimeout = *microTimeout
	}
	if *macroTimeout > 0 {
		cfg.Protocol.MacroBlockTimeout = *macroTimeout
	}
	if *numMicroBlocks > 0 {
		cfg.Protocol.NumMicroBlocks = uint32(*numMicroBlocks)
	}

	nodeCounts, err := parseNodeCounts(*nodesFlag)
	if err != nil {
		logrus.Fatalf("nodes: %v", err)
	}

	var traces *storage.TraceStore
	if *traceDB != "" {
		db, err := storage.NewLevelDB(*traceDB)
		if err != nil {
			logrus.Fatalf("open trace db: %v", err)
		}
		defer db.Close()
		traces = storage.NewTraceStore(db)
	}

	for _, numNodes := range nodeCounts {
		for iteration := 0; iteration < *iterations; iteration++ {
			runName := fmt.Sprintf("n%d-i%d", numNodes, iteration)
			report, recorder := runSimulation(cfg, numNodes, uint32(*blocks), *netKind,
				time.Duration(*delayMS)*time.Millisecond, *seed+int64(iteration))

			fmt.Printf("--- %s ---\n%s\n", runName, report)

			if traces != nil {
				if err := traces.WriteTrace(runName, storage.TraceFromRecorder(recorder)); err != nil {
					logrus.Fatalf("write trace %s: %v", runName, err)
				}
			}
		}
	}
}

func runSimulation(cfg *config.Config, numNodes int, blocks uint32, netKind string,
	delay time.Duration, seed int64) (metrics.Report, *metrics.Recorder) {
	logrus.Infof("[main] simulating %d parties Albatross, %d blocks", numNodes, blocks)

	simulationConfig := node.SimulationConfig{Blocks: blocks}
	protocolConfig := cfg.Protocol.ToConfig(uint16(numNodes))
	timing := cfg.Timing.ToTiming()
	genesis := protocol.NewGenesisBlock(network.GenesisValidators(numNodes))

	var topology sim.Topology
	switch netKind {
	case "simple":
		topology = network.NewSimpleNetwork(numNodes, delay,
			simulationConfig, protocolConfig, timing, genesis)
	case "regions":
		if cfg.Network == nil {
			logrus.Fatal("[main] -network=regions requires a [network] config section")
		}
		rng := rand.New(rand.NewSource(seed))
		regionNet, err := network.NewRegionNetwork(numNodes, cfg.Network.ToSpec(),
			simulationConfig, protocolConfig, timing, genesis, rng)
		if err != nil {
			logrus.Fatalf("[main] region network: %v", err)
		}
		topology = regionNet
	default:
		logrus.Fatalf("[main] unknown network kind %q", netKind)
	}

	recorder := metrics.NewRecorder()
	simulator := sim.New(topology, recorder)
	simulator.Build()

	for i := 0; i < numNodes; i++ {
		simulator.ScheduleInitial(sim.NodeID(i), protocol.Init{})
	}

	drained := simulator.Run()
	logrus.Infof("[main] simulation ended (queue drained: %t, %d events recorded)",
		drained, recorder.Len())

	return recorder.Analyze(), recorder
}

func parseNodeCounts(s string) ([]int, error) {
	var counts []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid node count %q", part)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("[main] config file not found at %s, using defaults", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
