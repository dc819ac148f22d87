// Package control holds the real-time core: the shared mode/running
// context, the remote command grammar, and the control loop that arbitrates
// between the autonomous grab behavior and manual commands.
package control

import (
	"fmt"
	"sync/atomic"
)

// Mode selects who drives the actuators: the autonomous loop or remote
// commands. It is always exactly one of the two values.
type Mode int32

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "MANUAL"
	}
	return "AUTO"
}

// ParseMode parses the wire spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "AUTO":
		return ModeAuto, nil
	case "MANUAL":
		return ModeManual, nil
	}
	return ModeAuto, fmt.Errorf("control: unknown mode %q", s)
}

// State is the shared control context visible to both the command intake
// goroutine and the control loop. The fields are single scalars read far
// more often than written, so they use lock-free atomics; no ordering
// beyond visibility is needed because mode changes are idempotent with
// respect to the next loop iteration.
//
// There is no hidden global: one State is constructed at startup and
// passed by reference into both goroutines.
type State struct {
	mode    atomic.Int32
	running atomic.Bool
	halt    atomic.Bool
}

// NewState returns a running context in AUTO mode.
func NewState() *State {
	s := &State{}
	s.running.Store(true)
	return s
}

// Mode returns the current control mode.
func (s *State) Mode() Mode { return Mode(s.mode.Load()) }

// SetMode switches the control mode. Only the command intake writes this.
func (s *State) SetMode(m Mode) { s.mode.Store(int32(m)) }

// Running reports whether the system should keep running.
func (s *State) Running() bool { return s.running.Load() }

// Shutdown signals both goroutines to stop. The transition is one-way;
// a stopped State is never restarted.
func (s *State) Shutdown() { s.running.Store(false) }

// RaiseHalt requests preemption of any in-flight motion sequence.
// The flag stays raised until the loop re-arms for the next sequence.
func (s *State) RaiseHalt() { s.halt.Store(true) }

// ClearHalt re-arms motion after a halt was observed.
func (s *State) ClearHalt() { s.halt.Store(false) }

// Halted reports whether a stop request is pending.
func (s *State) Halted() bool { return s.halt.Load() }
