package hal

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// pwmPeriod is the 50 Hz frame standard hobby servos expect.
const pwmPeriod = 20 * time.Millisecond

// softPWM bit-bangs a PWM signal on a plain GPIO from its own goroutine,
// mirroring wiringPi's softPwm semantics: duty = value/rng of each cycle,
// value 0 holds the line low.
type softPWM struct {
	pin  gpio.PinIO
	rng  int
	done chan struct{}

	mu    sync.Mutex
	value int
}

func (p *softPWM) set(value int) {
	p.mu.Lock()
	if value < 0 {
		value = 0
	}
	if value > p.rng {
		value = p.rng
	}
	p.value = value
	p.mu.Unlock()
}

func (p *softPWM) run() {
	for {
		select {
		case <-p.done:
			p.pin.Out(gpio.Low)
			return
		default:
		}

		p.mu.Lock()
		value := p.value
		p.mu.Unlock()

		if value <= 0 {
			p.pin.Out(gpio.Low)
			time.Sleep(pwmPeriod)
			continue
		}

		high := pwmPeriod * time.Duration(value) / time.Duration(p.rng)
		if high > pwmPeriod {
			high = pwmPeriod
		}
		p.pin.Out(gpio.High)
		time.Sleep(high)
		p.pin.Out(gpio.Low)
		time.Sleep(pwmPeriod - high)
	}
}

// Periph is the Backend implementation on top of periph.io host GPIOs.
type Periph struct {
	mu     sync.Mutex
	pins   map[int]gpio.PinIO
	inputs map[int]bool // pins already configured as inputs
	pwm    map[int]*softPWM
}

// NewPeriph initializes the periph host and returns a GPIO backend.
// Initialization failure is fatal for the process; callers are expected
// to abort startup on error.
func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hal: periph host init: %w", err)
	}
	return &Periph{
		pins:   make(map[int]gpio.PinIO),
		inputs: make(map[int]bool),
		pwm:    make(map[int]*softPWM),
	}, nil
}

// pinByNumber resolves and caches a BCM pin. Callers hold b.mu.
func (b *Periph) pinByNumber(n int) (gpio.PinIO, error) {
	if p, ok := b.pins[n]; ok {
		return p, nil
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, fmt.Errorf("hal: GPIO%d: %w", n, ErrUnknownPin)
	}
	b.pins[n] = p
	return p, nil
}

func (b *Periph) DigitalWrite(pin int, high bool) error {
	b.mu.Lock()
	p, err := b.pinByNumber(pin)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	delete(b.inputs, pin)
	b.mu.Unlock()

	if err := p.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("hal: GPIO%d write: %w", pin, err)
	}
	return nil
}

func (b *Periph) DigitalRead(pin int) (bool, error) {
	b.mu.Lock()
	p, err := b.pinByNumber(pin)
	if err != nil {
		b.mu.Unlock()
		return false, err
	}
	if !b.inputs[pin] {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			b.mu.Unlock()
			return false, fmt.Errorf("hal: GPIO%d input mode: %w", pin, err)
		}
		b.inputs[pin] = true
	}
	b.mu.Unlock()

	return bool(p.Read()), nil
}

func (b *Periph) PWMCreate(pin, initial, rng int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pinByNumber(pin)
	if err != nil {
		return err
	}
	if _, ok := b.pwm[pin]; ok {
		return nil // already registered
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("hal: GPIO%d output mode: %w", pin, err)
	}

	pw := &softPWM{pin: p, rng: rng, done: make(chan struct{})}
	pw.set(initial)
	b.pwm[pin] = pw
	go pw.run()
	return nil
}

func (b *Periph) PWMWrite(pin, value int) error {
	b.mu.Lock()
	pw, ok := b.pwm[pin]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("hal: PWM on GPIO%d: %w", pin, ErrUnknownPin)
	}
	pw.set(value)
	return nil
}

// Close stops every software PWM goroutine and leaves the lines low.
func (b *Periph) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, pw := range b.pwm {
		close(pw.done)
	}
	b.pwm = make(map[int]*softPWM)
	return nil
}
