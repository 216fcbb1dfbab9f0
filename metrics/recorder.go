// Package metrics collects timed events during a simulation run and derives
// aggregate statistics from them afterwards: block propagation delays, macro
// block commit latency and inter-block gaps.
package metrics

import (
	"github.com/sirupsen/logrus"

	"github.com/nimiq/albatross-simulator/sim"
)

// MessageEvent is noted for every event a node receives.
type MessageEvent struct {
	Own     sim.NodeID
	From    sim.NodeID
	Payload any
}

// TimedEvent is one recorded observation.
type TimedEvent struct {
	Event any
	Time  sim.Time
}

// Recorder is the default metrics sink: it keeps every noted event in
// insertion order for post-run analysis.
type Recorder struct {
	events []TimedEvent
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NoteEvent implements sim.Metrics.
func (r *Recorder) NoteEvent(event any, at sim.Time) {
	logrus.Tracef("[metrics] %v at %s", event, at)
	r.events = append(r.events, TimedEvent{Event: event, Time: at})
}

// Events returns all recorded events in insertion order.
func (r *Recorder) Events() []TimedEvent { return r.events }

// Len returns the number of recorded events.
func (r *Recorder) Len() int { return len(r.events) }
