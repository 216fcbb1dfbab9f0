package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/internal/testutil"
	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
)

// microBlockFixture builds a minimal micro block for analysis tests.
func microBlockFixture(number uint32) *protocol.MicroBlock {
	kp := crypto.KeyPairFromID(uint64(number))
	header := protocol.MicroHeader{
		Digest: protocol.MicroDigest{
			Validator:   kp.PublicKey(),
			BlockNumber: number,
		},
	}
	return &protocol.MicroBlock{
		Header:        header,
		Justification: kp.SecretKey().Sign(header.Hash()),
	}
}

func at(ms int) sim.Time { return sim.Time(0).Add(time.Duration(ms) * time.Millisecond) }

func TestRecorderKeepsInsertionOrder(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.NoteEvent("a", at(1))
	rec.NoteEvent("b", at(2))

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "a", rec.Events()[0].Event)
	assert.Equal(t, "b", rec.Events()[1].Event)
}

func TestAnalyzePropagationAndGaps(t *testing.T) {
	rec := metrics.NewRecorder()
	b1 := microBlockFixture(1)
	b2 := microBlockFixture(2)

	// Block 1 produced by node 0 at 10ms, received by nodes 1 and 2 at 110ms.
	rec.NoteEvent(metrics.MessageEvent{Own: 0, From: 0, Payload: protocol.BlockProduced{Block: b1}}, at(10))
	rec.NoteEvent(metrics.MessageEvent{Own: 1, From: 0, Payload: protocol.BlockMessage{Block: b1}}, at(110))
	rec.NoteEvent(metrics.MessageEvent{Own: 2, From: 0, Payload: protocol.BlockMessage{Block: b1}}, at(110))
	// An echo back at the producer must not count as propagation.
	rec.NoteEvent(metrics.MessageEvent{Own: 0, From: 1, Payload: protocol.BlockMessage{Block: b1}}, at(230))
	// A duplicate delivery must not count twice.
	rec.NoteEvent(metrics.MessageEvent{Own: 1, From: 2, Payload: protocol.BlockMessage{Block: b1}}, at(250))

	// Block 2 produced by node 1 at 310ms.
	rec.NoteEvent(metrics.MessageEvent{Own: 1, From: 1, Payload: protocol.BlockProduced{Block: b2}}, at(310))
	rec.NoteEvent(metrics.MessageEvent{Own: 0, From: 1, Payload: protocol.BlockMessage{Block: b2}}, at(410))

	report := rec.Analyze()
	assert.Equal(t, 2, report.BlocksProduced)

	require.Equal(t, 3, report.BlockPropagation.Count)
	assert.Equal(t, 100*time.Millisecond, report.BlockPropagation.Min)
	assert.Equal(t, 100*time.Millisecond, report.BlockPropagation.Max)
	assert.Equal(t, 100*time.Millisecond, report.BlockPropagation.Mean)

	require.Equal(t, 1, report.InterBlockGap.Count)
	assert.Equal(t, 300*time.Millisecond, report.InterBlockGap.Mean)
}

func TestAnalyzeMacroCommitLatency(t *testing.T) {
	rec := metrics.NewRecorder()
	genesis := testutil.Genesis(3)

	rec.NoteEvent(metrics.MessageEvent{Own: 2, From: 2, Payload: protocol.BlockProduced{Block: genesis}}, at(100))
	rec.NoteEvent(protocol.MacroBlockAccepted{Node: 0, Block: genesis}, at(600))
	rec.NoteEvent(protocol.MacroBlockAccepted{Node: 1, Block: genesis}, at(700))

	report := rec.Analyze()
	assert.Equal(t, 2, report.MacroBlocksAccepted)
	require.Equal(t, 2, report.MacroCommitLatency.Count)
	assert.Equal(t, 500*time.Millisecond, report.MacroCommitLatency.Min)
	assert.Equal(t, 600*time.Millisecond, report.MacroCommitLatency.Max)
	assert.Equal(t, 550*time.Millisecond, report.MacroCommitLatency.Mean)
}

func TestAnalyzeEmptyRecorder(t *testing.T) {
	report := metrics.NewRecorder().Analyze()
	assert.Equal(t, 0, report.BlocksProduced)
	assert.Equal(t, 0, report.BlockPropagation.Count)
	assert.Equal(t, metrics.Aggregate{}, report.InterBlockGap)
}
