package protocol

import (
	"time"

	"github.com/nimiq/albatross-simulator/sim"
)

// Environment is the scheduling surface the protocol requires from the engine
// during one dispatch. *sim.Environment satisfies it; tests substitute a fake
// to observe the messages a handler emits.
type Environment interface {
	OwnID() sim.NodeID
	Time() sim.Time
	Peers() []sim.NodeID
	AdvanceTime(d time.Duration)
	SendTo(to sim.NodeID, payload any) bool
	Schedule(to sim.NodeID, payload any, sendTime sim.Time) bool
	ScheduleSelf(payload any, at sim.Time)
	Broadcast(payload any)
	NoteEvent(event any, at sim.Time)
}
