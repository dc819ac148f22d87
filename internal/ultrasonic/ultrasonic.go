// Package ultrasonic drives an HC-SR04 ranging sensor: a trigger pulse on
// one GPIO, pulse-width timing of the echo line on another.
//
// Edge detection is a bounded busy-poll. The sensor gives no interrupt
// capability through this interface and the pulse widths are on the order
// of hundreds of microseconds, so a spin loop with an explicit deadline
// per edge is the simplest correct strategy; the deadline guarantees a
// disconnected or faulty sensor cannot hang the control loop.
package ultrasonic

import (
	"errors"
	"fmt"
	"time"

	"github.com/ficrammanifur/smart-robotic-arm/internal/hal"
)

var (
	// ErrTimeout means an echo edge did not arrive within the timeout.
	ErrTimeout = errors.New("ultrasonic: echo timeout")
	// ErrOutOfRange means the reading fell outside the sensor's usable band.
	ErrOutOfRange = errors.New("ultrasonic: reading out of range")
	// ErrAllInvalid means no sample in an averaging run was valid.
	ErrAllInvalid = errors.New("ultrasonic: no valid samples")
)

// speedOfSoundCmPerUS is halved during conversion for the round trip.
const speedOfSoundCmPerUS = 0.0343

// minDistanceCM is the HC-SR04's lower usable bound.
const minDistanceCM = 2.0

// Params configures a Sensor. Zero values pick the hardware defaults.
type Params struct {
	TrigPin       int
	EchoPin       int
	MaxDistanceCM float32       // default 400
	EchoTimeout   time.Duration // per-edge deadline, default 30ms
	SampleGap     time.Duration // delay between averaged samples, default 60ms
}

// Sensor produces filtered proximity readings from raw pulse timing.
type Sensor struct {
	be          hal.Backend
	trigPin     int
	echoPin     int
	maxDistance float32
	echoTimeout time.Duration
	sampleGap   time.Duration

	// Indirections for tests: clock, sleep, and the per-sample measure
	// used by Average.
	now     func() time.Time
	sleep   func(time.Duration)
	measure func() (float32, error)
}

// New configures the trigger and echo pins and returns a ready sensor.
func New(be hal.Backend, p Params) (*Sensor, error) {
	if p.MaxDistanceCM == 0 {
		p.MaxDistanceCM = 400
	}
	if p.EchoTimeout == 0 {
		p.EchoTimeout = 30 * time.Millisecond
	}
	if p.SampleGap == 0 {
		p.SampleGap = 60 * time.Millisecond
	}

	s := &Sensor{
		be:          be,
		trigPin:     p.TrigPin,
		echoPin:     p.EchoPin,
		maxDistance: p.MaxDistanceCM,
		echoTimeout: p.EchoTimeout,
		sampleGap:   p.SampleGap,
		now:         time.Now,
		sleep:       time.Sleep,
	}
	s.measure = s.Measure

	// Make sure the trigger line starts low and the sensor settles.
	if err := be.DigitalWrite(s.trigPin, false); err != nil {
		return nil, fmt.Errorf("ultrasonic: trigger init: %w", err)
	}
	s.sleep(10 * time.Millisecond)

	return s, nil
}

// Measure performs a single ranging cycle and returns the distance in cm.
// Fails with ErrTimeout when an echo edge never arrives and ErrOutOfRange
// for readings below 2 cm or above the configured maximum.
func (s *Sensor) Measure() (float32, error) {
	// 10µs trigger pulse starts the ranging cycle.
	if err := s.be.DigitalWrite(s.trigPin, true); err != nil {
		return 0, fmt.Errorf("ultrasonic: trigger: %w", err)
	}
	s.sleep(10 * time.Microsecond)
	if err := s.be.DigitalWrite(s.trigPin, false); err != nil {
		return 0, fmt.Errorf("ultrasonic: trigger: %w", err)
	}

	// Wait for the echo line to rise.
	deadline := s.now().Add(s.echoTimeout)
	for {
		level, err := s.be.DigitalRead(s.echoPin)
		if err != nil {
			return 0, fmt.Errorf("ultrasonic: echo read: %w", err)
		}
		if level {
			break
		}
		if s.now().After(deadline) {
			return 0, fmt.Errorf("echo start: %w", ErrTimeout)
		}
	}
	echoStart := s.now()

	// Measure how long it stays high.
	deadline = echoStart.Add(s.echoTimeout)
	for {
		level, err := s.be.DigitalRead(s.echoPin)
		if err != nil {
			return 0, fmt.Errorf("ultrasonic: echo read: %w", err)
		}
		if !level {
			break
		}
		if s.now().After(deadline) {
			return 0, fmt.Errorf("echo end: %w", ErrTimeout)
		}
	}
	elapsed := s.now().Sub(echoStart)

	distance := float32(elapsed.Microseconds()) * speedOfSoundCmPerUS / 2

	if distance < minDistanceCM || distance > s.maxDistance {
		return 0, fmt.Errorf("%.1f cm: %w", distance, ErrOutOfRange)
	}
	return distance, nil
}

// Average takes n successive measurements separated by the sample gap,
// discards failed samples, and returns the mean of the valid ones.
// Fails with ErrAllInvalid when every sample failed.
func (s *Sensor) Average(n int) (float32, error) {
	if n < 1 {
		n = 1
	}

	var sum float32
	valid := 0
	for i := 0; i < n; i++ {
		if d, err := s.measure(); err == nil {
			sum += d
			valid++
		}
		if i < n-1 {
			s.sleep(s.sampleGap)
		}
	}

	if valid == 0 {
		return 0, ErrAllInvalid
	}
	return sum / float32(valid), nil
}
