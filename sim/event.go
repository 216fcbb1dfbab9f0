package sim

import "fmt"

// Event carries a payload between two nodes. The engine treats the payload
// opaquely; only the topology's delay model may inspect it (e.g. for size).
type Event struct {
	payload any
	time    Time
	from    NodeID
	to      NodeID

	// seq is the insertion sequence number. Events with equal delivery time
	// are delivered in insertion (FIFO) order.
	seq uint64
}

// Payload returns the event payload.
func (e *Event) Payload() any { return e.payload }

// Time returns the virtual time this event is delivered at.
func (e *Event) Time() Time { return e.time }

// From returns the sender of the event.
func (e *Event) From() NodeID { return e.from }

// To returns the recipient of the event.
func (e *Event) To() NodeID { return e.to }

func (e *Event) String() string {
	return fmt.Sprintf("%v: %d -> %d @ %s", e.payload, e.from, e.to, e.time)
}
