// Package hal abstracts the GPIO capabilities the controllers consume:
// digital output writes, digital input reads, and software PWM outputs.
// The periph.io backend drives real pins on the Pi; the mock backend
// records writes and scripts reads for tests.
package hal

import "errors"

// ErrUnknownPin is returned for operations on a pin the backend cannot
// resolve, or for PWM writes to a pin that was never registered.
var ErrUnknownPin = errors.New("hal: unknown pin")

// Backend is the pin-level capability consumed by the sensor and the
// controllers. Pin numbers use BCM numbering.
//
// PWMCreate registers a software PWM output on a pin. Duty follows the
// wiringPi softPwm convention: a write of value against range rng holds
// the line high for value/rng of each cycle. A value of 0 keeps the line
// low, which is how servo outputs are silenced.
type Backend interface {
	DigitalWrite(pin int, high bool) error
	DigitalRead(pin int) (bool, error)
	PWMCreate(pin, initial, rng int) error
	PWMWrite(pin, value int) error
	Close() error
}
