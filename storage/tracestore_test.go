package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimiq/albatross-simulator/internal/testutil"
	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/protocol"
	"github.com/nimiq/albatross-simulator/sim"
	"github.com/nimiq/albatross-simulator/storage"
)

func sampleTrace(n int) []storage.TraceRecord {
	records := make([]storage.TraceRecord, n)
	for i := range records {
		records[i] = storage.TraceRecord{
			Seq:  uint64(i),
			Time: sim.Time(0).Add(time.Duration(i) * time.Millisecond),
			Kind: "block",
			From: sim.NodeID(i % 3),
			To:   sim.NodeID((i + 1) % 3),
		}
	}
	return records
}

func TestTraceStoreRoundTrip(t *testing.T) {
	store := storage.NewTraceStore(testutil.NewMemDB())
	written := sampleTrace(20)

	require.NoError(t, store.WriteTrace("run-1", written))

	read, err := store.ReadTrace("run-1")
	require.NoError(t, err)
	assert.Equal(t, written, read)
	assert.True(t, storage.EqualTraces(written, read))
}

func TestTraceStoreSeparatesRuns(t *testing.T) {
	store := storage.NewTraceStore(testutil.NewMemDB())
	require.NoError(t, store.WriteTrace("a", sampleTrace(3)))
	require.NoError(t, store.WriteTrace("b", sampleTrace(5)))

	a, err := store.ReadTrace("a")
	require.NoError(t, err)
	b, err := store.ReadTrace("b")
	require.NoError(t, err)

	assert.Len(t, a, 3)
	assert.Len(t, b, 5)
	assert.False(t, storage.EqualTraces(a, b))
}

func TestTraceStoreMissingRunIsEmpty(t *testing.T) {
	store := storage.NewTraceStore(testutil.NewMemDB())
	records, err := store.ReadTrace("nope")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTraceFromRecorderUsesMessageEventsOnly(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.NoteEvent(metrics.MessageEvent{Own: 1, From: 0, Payload: protocol.Init{}}, sim.Time(0))
	rec.NoteEvent(metrics.MessageEvent{Own: 2, From: 1, Payload: protocol.MicroBlockTimeout{BlockNumber: 1}},
		sim.Time(0).Add(time.Second))
	rec.NoteEvent("not a message event", sim.Time(0))

	records := storage.TraceFromRecorder(rec)
	require.Len(t, records, 2)
	assert.Equal(t, storage.TraceRecord{Seq: 0, Time: sim.Time(0), Kind: "init", From: 0, To: 1}, records[0])
	assert.Equal(t, "micro-block-timeout", records[1].Kind)
	assert.Equal(t, uint64(1), records[1].Seq)
}

func TestEqualTraces(t *testing.T) {
	a := sampleTrace(4)
	b := sampleTrace(4)
	assert.True(t, storage.EqualTraces(a, b))

	b[2].Time = b[2].Time.Add(time.Nanosecond)
	assert.False(t, storage.EqualTraces(a, b))
	assert.False(t, storage.EqualTraces(a, a[:3]))
}
