package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

// Aggregate summarizes a set of durations.
type Aggregate struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

func aggregate(durations []time.Duration) Aggregate {
	if len(durations) == 0 {
		return Aggregate{}
	}
	agg := Aggregate{Count: len(durations), Min: durations[0], Max: durations[0]}
	var total time.Duration
	for _, d := range durations {
		if d < agg.Min {
			agg.Min = d
		}
		if d > agg.Max {
			agg.Max = d
		}
		total += d
	}
	agg.Mean = total / time.Duration(len(durations))
	return agg
}

func (a Aggregate) String() string {
	if a.Count == 0 {
		return "n=0"
	}
	return fmt.Sprintf("n=%d min=%s mean=%s max=%s", a.Count, a.Min, a.Mean, a.Max)
}

// Report holds the aggregate statistics of one run.
type Report struct {
	// BlockPropagation is the delay between a block finishing production and
	// its announcement arriving at each other node.
	BlockPropagation Aggregate
	// MacroCommitLatency is the delay between a macro block proposal
	// finishing production at its leader and each node committing the block.
	MacroCommitLatency Aggregate
	// InterBlockGap is the virtual time between consecutive block
	// productions.
	InterBlockGap Aggregate

	// BlocksProduced counts distinct produced blocks, micro and macro.
	BlocksProduced int
	// MacroBlocksAccepted counts MacroBlockAccepted observations.
	MacroBlocksAccepted int
}

func (r Report) String() string {
	return fmt.Sprintf("blocks produced:      %d\nmacro blocks accepted: %d\nblock propagation:    %s\nmacro commit latency: %s\ninter-block gap:      %s",
		r.BlocksProduced, r.MacroBlocksAccepted, r.BlockPropagation, r.MacroCommitLatency, r.InterBlockGap)
}

type firstReception struct {
	node sim.NodeID
	hash crypto.Hash
}

// Analyze derives the run report from the recorded events.
func (r *Recorder) Analyze() Report {
	producedAt := make(map[crypto.Hash]sim.Time)
	producedBy := make(map[crypto.Hash]sim.NodeID)
	producedNumber := make(map[crypto.Hash]uint32)
	received := make(map[firstReception]sim.Time)

	var propagation []time.Duration
	var commitLatency []time.Duration
	macroAccepted := 0

	for _, te := range r.events {
		switch ev := te.Event.(type) {
		case MessageEvent:
			switch msg := ev.Payload.(type) {
			case protocol.BlockProduced:
				hash := msg.Block.Hash()
				if _, ok := producedAt[hash]; !ok {
					producedAt[hash] = te.Time
					producedBy[hash] = ev.Own
					producedNumber[hash] = msg.Block.Number()
				}
			case protocol.BlockMessage:
				key := firstReception{node: ev.Own, hash: msg.Block.Hash()}
				if _, ok := received[key]; !ok {
					received[key] = te.Time
				}
			}
		case protocol.MacroBlockAccepted:
			macroAccepted++
			if produced, ok := producedAt[ev.Block.Hash()]; ok && te.Time >= produced {
				commitLatency = append(commitLatency, te.Time.Sub(produced))
			}
		}
	}

	for key, at := range received {
		produced, ok := producedAt[key.hash]
		if !ok || at < produced {
			continue
		}
		// Echoes arriving back at the producer are not propagation.
		if key.node == producedBy[key.hash] {
			continue
		}
		propagation = append(propagation, at.Sub(produced))
	}
	// Map iteration order is random; sort for a deterministic aggregate.
	sort.Slice(propagation, func(i, j int) bool { return propagation[i] < propagation[j] })

	// Inter-block gaps between consecutive production times, by block number.
	type production struct {
		number uint32
		at     sim.Time
	}
	productions := make([]production, 0, len(producedAt))
	for hash, at := range producedAt {
		productions = append(productions, production{number: producedNumber[hash], at: at})
	}
	sort.Slice(productions, func(i, j int) bool {
		if productions[i].number != productions[j].number {
			return productions[i].number < productions[j].number
		}
		return productions[i].at < productions[j].at
	})
	var gaps []time.Duration
	for i := 1; i < len(productions); i++ {
		if productions[i].number == productions[i-1].number+1 && productions[i].at >= productions[i-1].at {
			gaps = append(gaps, productions[i].at.Sub(productions[i-1].at))
		}
	}

	return Report{
		BlockPropagation:    aggregate(propagation),
		MacroCommitLatency:  aggregate(commitLatency),
		InterBlockGap:       aggregate(gaps),
		BlocksProduced:      len(producedAt),
		MacroBlocksAccepted: macroAccepted,
	}
}
