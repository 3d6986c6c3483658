package chain

import (
	"fmt"

	"github.com/arloliu/go-zaber/frame"
)

// Target selects the actuators a command is sent to.
type Target struct {
	index     int
	broadcast bool
}

// Broadcast addresses every actuator in the chain.
var Broadcast = Target{broadcast: true}

// Actuator addresses the actuator at zero-based chain position index.
// A negative index is rejected with ErrInvalidActuator when used.
func Actuator(index int) Target {
	return Target{index: index}
}

// IsBroadcast reports whether t addresses every actuator.
func (t Target) IsBroadcast() bool { return t.broadcast }

// Index returns the actuator index, or -1 for Broadcast.
func (t Target) Index() int {
	if t.broadcast {
		return -1
	}

	return t.index
}

func (t Target) String() string {
	if t.broadcast {
		return "all"
	}

	return fmt.Sprintf("actuator %d", t.index)
}

// address returns the wire address of t.
func (t Target) address() (byte, error) {
	if t.broadcast {
		return frame.BroadcastAddress, nil
	}
	if t.index < 0 || t.index >= frame.MaxAddress {
		return 0, fmt.Errorf("%w: %d", ErrInvalidActuator, t.index)
	}

	return byte(t.index + 1), nil
}
