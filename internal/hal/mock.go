package hal

import "sync"

// PWMEvent is one recorded PWM write.
type PWMEvent struct {
	Pin   int
	Value int
}

// DigitalEvent is one recorded digital write.
type DigitalEvent struct {
	Pin  int
	High bool
}

// Mock is an in-memory Backend for tests. Writes are recorded in order;
// reads are scripted through ReadFunc, which receives the pin and the
// per-pin call count so echo pulses can be simulated.
type Mock struct {
	mu sync.Mutex

	DigitalWrites []DigitalEvent
	PWMWrites     []PWMEvent
	pwmRange      map[int]int
	pwmLast       map[int]int
	digitalLast   map[int]bool
	readCount     map[int]int

	ReadFunc func(pin, call int) (bool, error)

	// Error injection
	DigitalWriteErr error
	PWMWriteErr     error
	PWMCreateErr    error
}

func NewMock() *Mock {
	return &Mock{
		pwmRange:    make(map[int]int),
		pwmLast:     make(map[int]int),
		digitalLast: make(map[int]bool),
		readCount:   make(map[int]int),
	}
}

func (m *Mock) DigitalWrite(pin int, high bool) error {
	if m.DigitalWriteErr != nil {
		return m.DigitalWriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigitalWrites = append(m.DigitalWrites, DigitalEvent{Pin: pin, High: high})
	m.digitalLast[pin] = high
	return nil
}

func (m *Mock) DigitalRead(pin int) (bool, error) {
	m.mu.Lock()
	call := m.readCount[pin]
	m.readCount[pin]++
	fn := m.ReadFunc
	m.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return fn(pin, call)
}

func (m *Mock) PWMCreate(pin, initial, rng int) error {
	if m.PWMCreateErr != nil {
		return m.PWMCreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pwmRange[pin] = rng
	m.pwmLast[pin] = initial
	return nil
}

func (m *Mock) PWMWrite(pin, value int) error {
	if m.PWMWriteErr != nil {
		return m.PWMWriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pwmRange[pin]; !ok {
		return ErrUnknownPin
	}
	m.PWMWrites = append(m.PWMWrites, PWMEvent{Pin: pin, Value: value})
	m.pwmLast[pin] = value
	return nil
}

func (m *Mock) Close() error { return nil }

// PWMValue returns the last PWM value written to pin.
func (m *Mock) PWMValue(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pwmLast[pin]
}

// DigitalValue returns the last digital level written to pin.
func (m *Mock) DigitalValue(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.digitalLast[pin]
}

// PWMWritesFor returns the ordered PWM values written to one pin.
func (m *Mock) PWMWritesFor(pin int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, ev := range m.PWMWrites {
		if ev.Pin == pin {
			out = append(out, ev.Value)
		}
	}
	return out
}
