// Package motor owns the drive motor's speed and direction state on top
// of a hal.Backend: one PWM line for magnitude, two direction pins.
package motor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ficrammanifur/smart-robotic-arm/internal/hal"
)

const (
	// Speed is a signed percentage; direction is derived from its sign,
	// not stored separately.
	MinSpeed = -100
	MaxSpeed = 100

	pwmRange = 100
)

// ErrBadSpeed is returned for speeds outside [-100,100].
var ErrBadSpeed = errors.New("motor: invalid speed")

// Params names the motor driver pins.
type Params struct {
	PWMPin  int
	Dir1Pin int
	Dir2Pin int
}

// Motor is the drive motor controller. State is mutex-guarded for the
// same reason as the arm: command intake and control loop share it.
type Motor struct {
	be hal.Backend
	p  Params

	mu    sync.Mutex
	speed int
}

// New configures the direction and PWM pins and leaves the motor stopped.
func New(be hal.Backend, p Params) (*Motor, error) {
	m := &Motor{be: be, p: p}

	for _, pin := range []int{p.Dir1Pin, p.Dir2Pin} {
		if err := be.DigitalWrite(pin, false); err != nil {
			return nil, fmt.Errorf("motor: direction pin init: %w", err)
		}
	}
	if err := be.PWMCreate(p.PWMPin, 0, pwmRange); err != nil {
		return nil, fmt.Errorf("motor: pwm init: %w", err)
	}
	return m, nil
}

// SetSpeed applies a signed speed. Zero behaves exactly like Stop.
// Out-of-range values are rejected without touching the hardware.
func (m *Motor) SetSpeed(speed int) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%d: %w", speed, ErrBadSpeed)
	}
	if speed == 0 {
		return m.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	forward := speed > 0
	magnitude := speed
	if !forward {
		magnitude = -speed
	}

	if err := m.be.DigitalWrite(m.p.Dir1Pin, forward); err != nil {
		return fmt.Errorf("motor: dir1: %w", err)
	}
	if err := m.be.DigitalWrite(m.p.Dir2Pin, !forward); err != nil {
		return fmt.Errorf("motor: dir2: %w", err)
	}
	if err := m.be.PWMWrite(m.p.PWMPin, magnitude); err != nil {
		return fmt.Errorf("motor: pwm: %w", err)
	}
	m.speed = speed
	return nil
}

// Stop de-asserts both direction pins and zeroes the duty output.
// Idempotent.
func (m *Motor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.be.DigitalWrite(m.p.Dir1Pin, false); err != nil {
		errs = append(errs, fmt.Errorf("motor: dir1: %w", err))
	}
	if err := m.be.DigitalWrite(m.p.Dir2Pin, false); err != nil {
		errs = append(errs, fmt.Errorf("motor: dir2: %w", err))
	}
	if err := m.be.PWMWrite(m.p.PWMPin, 0); err != nil {
		errs = append(errs, fmt.Errorf("motor: pwm: %w", err))
	}
	m.speed = 0
	return errors.Join(errs...)
}

// Speed returns the current signed speed.
func (m *Motor) Speed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}
