package storage

import (
	"encoding/json"
	"fmt"

	"github.com/nimiq/albatross-simulator/metrics"
	"github.com/nimiq/albatross-simulator/sim"
)

const tracePrefix = "trace:"

// TraceRecord is one delivered message of a run, in delivery order. Traces of
// two runs with identical inputs must be identical; comparing stored traces is
// how reproducibility is checked across invocations.
type TraceRecord struct {
	Seq  uint64     `json:"seq"`
	Time sim.Time   `json:"time"`
	Kind string     `json:"kind"`
	From sim.NodeID `json:"from"`
	To   sim.NodeID `json:"to"`
}

// kinded is satisfied by protocol messages; used to label trace records
// without depending on the protocol package.
type kinded interface {
	Kind() string
}

// TraceFromRecorder converts the recorder's message events into trace
// records, numbered in delivery order.
func TraceFromRecorder(r *metrics.Recorder) []TraceRecord {
	var records []TraceRecord
	for _, te := range r.Events() {
		ev, ok := te.Event.(metrics.MessageEvent)
		if !ok {
			continue
		}
		kind := fmt.Sprintf("%T", ev.Payload)
		if k, ok := ev.Payload.(kinded); ok {
			kind = k.Kind()
		}
		records = append(records, TraceRecord{
			Seq:  uint64(len(records)),
			Time: te.Time,
			Kind: kind,
			From: ev.From,
			To:   ev.Own,
		})
	}
	return records
}

// TraceStore persists run traces in a DB, one record per key, ordered by
// sequence number.
type TraceStore struct {
	db DB
}

// NewTraceStore wraps db as a trace store.
func NewTraceStore(db DB) *TraceStore {
	return &TraceStore{db: db}
}

func traceKey(run string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%012d", tracePrefix, run, seq))
}

// WriteTrace stores all records of a run in a single batch.
func (s *TraceStore) WriteTrace(run string, records []TraceRecord) error {
	batch := s.db.NewBatch()
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal trace record %d: %w", rec.Seq, err)
		}
		batch.Set(traceKey(run, rec.Seq), data)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("write trace %q: %w", run, err)
	}
	return nil
}

// ReadTrace loads all records of a run in sequence order.
func (s *TraceStore) ReadTrace(run string) ([]TraceRecord, error) {
	it := s.db.NewIterator([]byte(tracePrefix + run + ":"))
	defer it.Release()

	var records []TraceRecord
	for it.Next() {
		var rec TraceRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal trace record %q: %w", it.Key(), err)
		}
		records = append(records, rec)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return records, nil
}

// EqualTraces reports whether two traces are identical record for record.
func EqualTraces(a, b []TraceRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
