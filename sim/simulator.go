package sim

import (
	"github.com/sirupsen/logrus"
)

// Simulator owns the event queue, the nodes, the topology and the metrics
// sink, and drives the main dispatch loop. It delivers events strictly in
// delivery-time order, breaking ties by insertion order, so a run is fully
// determined by its topology, node behaviors and initial events.
type Simulator struct {
	topology Topology
	metrics  Metrics
	nodes    []Node
	queue    eventQueue

	initialTime Time
}

// New creates a simulator for the given topology and metrics sink. Nodes are
// instantiated lazily by Build (or the first Run).
func New(topology Topology, metrics Metrics) *Simulator {
	return &Simulator{
		topology: topology,
		metrics:  metrics,
		nodes:    make([]Node, 0, topology.NumNodes()),
	}
}

// Build instantiates one node per identity using the topology's factory.
// Calling Build more than once is a no-op.
func (s *Simulator) Build() {
	if len(s.nodes) > 0 {
		return
	}
	numNodes := s.topology.NumNodes()
	logrus.Infof("[sim] setting up %d nodes", numNodes)
	for i := 0; i < numNodes; i++ {
		s.nodes = append(s.nodes, s.topology.NewNode(NodeID(i)))
	}
}

// ScheduleInitial seeds the queue with an event delivered to a node at the
// initial time. The sender is set to the recipient itself.
func (s *Simulator) ScheduleInitial(to NodeID, payload any) {
	s.queue.push(&Event{
		payload: payload,
		time:    s.initialTime,
		from:    to,
		to:      to,
	})
}

// Run dispatches events until the queue drains or a node requests
// termination. It returns true if the queue drained and false if a node voted
// to stop or an event addressed a node outside the topology.
func (s *Simulator) Run() bool {
	s.Build()

	for {
		ev := s.queue.pop()
		if ev == nil {
			return true
		}
		if ev.to < 0 || int(ev.to) >= len(s.nodes) {
			logrus.Errorf("[sim] event addressed to unknown node %d", ev.to)
			return false
		}
		env := newEnvironment(ev.to, s.topology, ev.time, &s.queue, s.metrics)
		cont := s.nodes[ev.to].OnEvent(ev, env)
		env.release()
		if !cont {
			return false
		}
	}
}

// Step dispatches a single event. It returns false once the queue is empty or
// a node requested termination.
func (s *Simulator) Step() bool {
	s.Build()

	ev := s.queue.pop()
	if ev == nil {
		return false
	}
	if ev.to < 0 || int(ev.to) >= len(s.nodes) {
		logrus.Errorf("[sim] event addressed to unknown node %d", ev.to)
		return false
	}
	env := newEnvironment(ev.to, s.topology, ev.time, &s.queue, s.metrics)
	cont := s.nodes[ev.to].OnEvent(ev, env)
	env.release()
	return cont
}

// Metrics returns the metrics sink the simulator was created with.
func (s *Simulator) Metrics() Metrics { return s.metrics }

// InitialTime returns the virtual start time of the simulation.
func (s *Simulator) InitialTime() Time { return s.initialTime }

// Node returns the instantiated node with the given identity, or nil before
// Build. Useful for inspecting node state after a run.
func (s *Simulator) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// PendingEvents returns the number of undelivered events in the queue.
func (s *Simulator) PendingEvents() int { return s.queue.Len() }
