// Package sim implements a deterministic discrete-event network simulator.
// Nodes exchange timestamped events over a configurable topology; the engine
// delivers events one at a time in virtual-time order, so runs with identical
// inputs produce identical traces.
package sim

import (
	"fmt"
	"time"
)

// Time is a point in virtual time, measured in nanoseconds since the start of
// the simulation. Virtual time only moves through event delivery and explicit
// AdvanceTime calls; the wall clock is never consulted during dispatch.
type Time int64

// Add returns the time d after t.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Sub returns the duration elapsed between o and t.
func (t Time) Sub(o Time) time.Duration {
	return time.Duration(t - o)
}

// Before reports whether t is earlier than o.
func (t Time) Before(o Time) bool { return t < o }

// After reports whether t is later than o.
func (t Time) After(o Time) bool { return t > o }

func (t Time) String() string {
	return fmt.Sprintf("t+%s", time.Duration(t))
}

// NodeID identifies a node in the simulated network. Valid IDs are
// 0..NumNodes-1 for the topology the engine was built with.
type NodeID int
