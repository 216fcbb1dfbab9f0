package sim

import "time"

// Environment is the per-dispatch handle a node uses to interact with the
// engine: query its identity and peers, send and schedule events, advance the
// local clock and report metrics. It borrows the engine's queue and metrics
// sink for the duration of a single OnEvent call and is released afterwards;
// retaining it past the call is a programming error: its peer, scheduling and
// metrics methods panic once it is released.
type Environment struct {
	ownID    NodeID
	now      Time
	topology Topology
	queue    *eventQueue
	metrics  Metrics
	released bool
}

func newEnvironment(ownID NodeID, topology Topology, now Time, queue *eventQueue, metrics Metrics) *Environment {
	return &Environment{
		ownID:    ownID,
		now:      now,
		topology: topology,
		queue:    queue,
		metrics:  metrics,
	}
}

func (e *Environment) release() { e.released = true }

func (e *Environment) checkValid() {
	if e.released {
		panic("sim: Environment used outside its dispatch")
	}
}

// OwnID returns the identity of the node being dispatched.
func (e *Environment) OwnID() NodeID { return e.ownID }

// Time returns the current virtual time of this dispatch.
func (e *Environment) Time() Time { return e.now }

// Peers returns the identities adjacent to this node.
func (e *Environment) Peers() []NodeID {
	e.checkValid()
	return e.topology.Adjacent(e.ownID)
}

// AdvanceTime moves the local virtual clock forward by d. Subsequent sends and
// schedules from this dispatch use the advanced time; already-scheduled events
// are unaffected.
func (e *Environment) AdvanceTime(d time.Duration) {
	e.now = e.now.Add(d)
}

// SendTo sends payload to another node at the current time. The transmission
// delay is added automatically. Returns false if no link exists.
func (e *Environment) SendTo(to NodeID, payload any) bool {
	return e.Schedule(to, payload, e.now)
}

// Schedule sends payload to another node at a given send time. The
// transmission delay is added automatically. Returns false if no link exists.
func (e *Environment) Schedule(to NodeID, payload any, sendTime Time) bool {
	e.checkValid()
	delay, ok := e.topology.TransmissionDelay(e.ownID, to, payload)
	if !ok {
		return false
	}
	e.queue.push(&Event{
		payload: payload,
		time:    sendTime.Add(delay),
		from:    e.ownID,
		to:      to,
	})
	return true
}

// ScheduleSelf schedules payload for delivery to this node at the given time.
// This models processing delays and timeouts and always succeeds.
func (e *Environment) ScheduleSelf(payload any, at Time) {
	e.checkValid()
	e.queue.push(&Event{
		payload: payload,
		time:    at,
		from:    e.ownID,
		to:      e.ownID,
	})
}

// Broadcast sends payload to all adjacent peers at the current time.
func (e *Environment) Broadcast(payload any) {
	e.ScheduledBroadcast(payload, e.now)
}

// ScheduledBroadcast sends payload to all adjacent peers at the given send
// time.
func (e *Environment) ScheduledBroadcast(payload any, sendTime Time) {
	for _, peer := range e.topology.Adjacent(e.ownID) {
		e.Schedule(peer, payload, sendTime)
	}
}

// NoteEvent forwards a metrics event to the metrics sink.
func (e *Environment) NoteEvent(event any, at Time) {
	e.checkValid()
	e.metrics.NoteEvent(event, at)
}
