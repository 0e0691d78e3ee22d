package core

import "fmt"

// mockPin is both an output and an input. Outputs record their level and
// edge count; inputs return level unless read is set.
type mockPin struct {
	level bool
	rises int
	read  func() bool
}

func (p *mockPin) Set(high bool) {
	if high && !p.level {
		p.rises++
	}
	p.level = high
}

func (p *mockPin) Get() bool {
	if p.read != nil {
		return p.read()
	}
	return p.level
}

// MockGPIODriver hands out mockPins by number
type MockGPIODriver struct {
	pins map[GPIOPin]*mockPin
	fail GPIOPin
}

func NewMockGPIODriver() *MockGPIODriver {
	return &MockGPIODriver{pins: make(map[GPIOPin]*mockPin)}
}

func (m *MockGPIODriver) pin(n GPIOPin) *mockPin {
	p, ok := m.pins[n]
	if !ok {
		p = &mockPin{}
		m.pins[n] = p
	}
	return p
}

func (m *MockGPIODriver) ConfigureOutput(n GPIOPin) (OutputPin, error) {
	if m.fail != 0 && n == m.fail {
		return nil, fmt.Errorf("pin %d unavailable", n)
	}
	return m.pin(n), nil
}

func (m *MockGPIODriver) ConfigureInputPullUp(n GPIOPin) (InputPin, error) {
	if m.fail != 0 && n == m.fail {
		return nil, fmt.Errorf("pin %d unavailable", n)
	}
	p := m.pin(n)
	p.level = true
	return p, nil
}

// mockServo records the last commanded angle
type mockServo struct {
	angle int
	calls int
}

func (s *mockServo) SetAngle(angle int) error {
	s.angle = angle
	s.calls++
	return nil
}

type mockAnalog uint16

func (a mockAnalog) Get() uint16 { return uint16(a) }

// switchFor returns a pull-up limit switch that closes (reads low) while the
// axis position is at or below zero
func switchFor(a *Axis) *mockPin {
	return &mockPin{read: func() bool { return a.Position() > 0 }}
}

func noDelay(uint32) {}
