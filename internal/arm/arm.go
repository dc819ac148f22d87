// Package arm owns the per-joint angle state of the robotic arm and
// performs validated, interpolated servo motion on top of a hal.Backend.
package arm

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ficrammanifur/smart-robotic-arm/internal/hal"
)

// Joint indices, in wiring order.
const (
	JointBase = iota
	JointShoulder
	JointElbow
	JointWrist
	JointGripper
)

const (
	minAngle  = 0
	maxAngle  = 180
	homeAngle = 90 // midpoint of the valid range

	// Servo pulses are written as wiringPi-style duty values against a
	// range of 200 (20ms frame, so one unit = 100µs of pulse width).
	// The mapped value is clamped into [5,25] (0.5ms-2.5ms) so that even
	// a nominally valid angle cannot overdrive the mechanics.
	pwmRange = 200
	dutyMin  = 5
	dutyMax  = 25
)

var (
	// ErrBadJoint is returned for a joint id outside 0..count-1.
	ErrBadJoint = errors.New("arm: invalid joint id")
	// ErrBadAngle is returned for an angle outside [0,180].
	ErrBadAngle = errors.New("arm: invalid angle")
	// ErrBadSteps is returned when an interpolated move asks for fewer
	// than one step.
	ErrBadSteps = errors.New("arm: steps must be >= 1")
	// ErrHalted is returned when a move was preempted by a stop request.
	ErrHalted = errors.New("arm: move halted")
)

// Params configures actuation timing. Zero values pick the defaults.
type Params struct {
	SettleDelay time.Duration // pause after each servo write, default 20ms
	StepDelay   time.Duration // pause between interpolation steps, default 50ms
}

// Arm is the joint controller. Angle state is guarded by a mutex because
// both the command intake goroutine and the control loop actuate the same
// joints; EmergencyStop may be called from either while a move is in
// flight on the other.
type Arm struct {
	be     hal.Backend
	pins   []int
	settle time.Duration
	step   time.Duration

	mu     sync.Mutex
	angles []int

	sleep  func(time.Duration)
	halted func() bool
}

// New registers a software PWM output per joint and moves the arm to the
// home position. An initialization failure on any joint is returned as-is
// and should abort startup.
func New(be hal.Backend, pins []int, p Params) (*Arm, error) {
	if p.SettleDelay == 0 {
		p.SettleDelay = 20 * time.Millisecond
	}
	if p.StepDelay == 0 {
		p.StepDelay = 50 * time.Millisecond
	}

	a := &Arm{
		be:     be,
		pins:   pins,
		settle: p.SettleDelay,
		step:   p.StepDelay,
		angles: make([]int, len(pins)),
		sleep:  time.Sleep,
	}
	for i := range a.angles {
		a.angles[i] = homeAngle
	}

	for i, pin := range pins {
		if err := be.PWMCreate(pin, 0, pwmRange); err != nil {
			return nil, fmt.Errorf("arm: joint %d pwm init: %w", i, err)
		}
	}
	if err := a.Home(); err != nil {
		return nil, err
	}
	return a, nil
}

// SetHaltFunc installs the shared stop signal checked between
// interpolation steps. A nil function disables preemption checks.
func (a *Arm) SetHaltFunc(f func() bool) {
	a.halted = f
}

// JointCount returns the number of joints.
func (a *Arm) JointCount() int { return len(a.pins) }

func (a *Arm) validJoint(id int) bool { return id >= 0 && id < len(a.pins) }

// dutyForAngle maps an angle linearly onto the PWM range, then clamps the
// result into the safe pulse band.
func dutyForAngle(angle int) int {
	duty := angle * pwmRange / maxAngle
	if duty < dutyMin {
		duty = dutyMin
	}
	if duty > dutyMax {
		duty = dutyMax
	}
	return duty
}

// SetAngle validates and applies one joint angle, then waits the settle
// delay. Invalid input is rejected before any hardware write and leaves
// the stored angle unchanged.
func (a *Arm) SetAngle(id, angle int) error {
	if !a.validJoint(id) {
		return fmt.Errorf("joint %d: %w", id, ErrBadJoint)
	}
	if angle < minAngle || angle > maxAngle {
		return fmt.Errorf("angle %d: %w", angle, ErrBadAngle)
	}

	a.mu.Lock()
	if err := a.be.PWMWrite(a.pins[id], dutyForAngle(angle)); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("arm: joint %d write: %w", id, err)
	}
	a.angles[id] = angle
	a.mu.Unlock()

	a.sleep(a.settle)
	return nil
}

// SetAngles applies one angle per joint. The slice length must equal the
// joint count. Individual failures do not short-circuit the remaining
// joints; all are attempted and the failures reported together.
func (a *Arm) SetAngles(angles []int) error {
	if len(angles) != len(a.pins) {
		return fmt.Errorf("arm: got %d angles for %d joints: %w",
			len(angles), len(a.pins), ErrBadJoint)
	}
	var errs []error
	for id, angle := range angles {
		if err := a.SetAngle(id, angle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SmoothMove linearly interpolates from the joint's current angle to
// target over the given number of steps, pausing the step delay between
// writes. The final step snaps exactly to target so integer rounding
// cannot accumulate. The halt signal is checked before every step;
// a raised signal aborts the move with ErrHalted.
func (a *Arm) SmoothMove(id, target, steps int) error {
	if !a.validJoint(id) {
		return fmt.Errorf("joint %d: %w", id, ErrBadJoint)
	}
	if target < minAngle || target > maxAngle {
		return fmt.Errorf("angle %d: %w", target, ErrBadAngle)
	}
	if steps < 1 {
		return fmt.Errorf("%d: %w", steps, ErrBadSteps)
	}

	a.mu.Lock()
	current := a.angles[id]
	a.mu.Unlock()

	stepSize := (target - current) / steps
	for i := 1; i <= steps; i++ {
		if a.halted != nil && a.halted() {
			return ErrHalted
		}

		angle := current + stepSize*i
		if i == steps {
			angle = target
		}
		if err := a.SetAngle(id, angle); err != nil {
			return err
		}
		if i < steps {
			a.sleep(a.step)
		}
	}
	return nil
}

// Home moves every joint to the neutral midpoint angle.
func (a *Arm) Home() error {
	home := make([]int, len(a.pins))
	for i := range home {
		home[i] = homeAngle
	}
	return a.SetAngles(home)
}

// EmergencyStop silences the PWM output on every joint immediately,
// independent of any interpolation in progress on another goroutine.
// Stored angles are deliberately left untouched: the outputs go quiet but
// the last commanded positions stay on record, since the servos offer no
// way to read their absolute position back.
func (a *Arm) EmergencyStop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, pin := range a.pins {
		if err := a.be.PWMWrite(pin, 0); err != nil {
			log.Printf("arm: emergency stop joint %d: %v", id, err)
		}
	}
}

// Angle returns the stored angle of one joint.
func (a *Arm) Angle(id int) (int, error) {
	if !a.validJoint(id) {
		return 0, fmt.Errorf("joint %d: %w", id, ErrBadJoint)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angles[id], nil
}

// Angles returns a snapshot of all joint angles in joint order.
func (a *Arm) Angles() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.angles))
	copy(out, a.angles)
	return out
}
