// Package sim runs the arm controller firmware in process against a
// simulated arm. A Sim is a serial.Port, so the host talks to it exactly as
// it talks to the real controller.
package sim

import (
	"io"
	"math"
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/02alexander/robby-fischer/core"
	"github.com/02alexander/robby-fischer/protocol"
)

// Options configure a simulation. The zero value simulates the reference arm
// on the wall clock.
type Options struct {
	// Controller configuration, core.DefaultArmConfig() when zero
	Arm *core.ArmConfig
	// Physical joint values at power on: degrees, degrees, metres
	Start [3]float64
	// Main loop period
	Tick time.Duration
	// Least simulated time that passes per write or read
	Exchange time.Duration
	// Simulated time follows this clock when it runs ahead
	Clock clk.Clock
	// Raw readings of the two magnet sensors
	Magnets [2]uint16
	Logger  *zap.SugaredLogger
}

// DefaultStart is where the arm rests when powered on
var DefaultStart = [3]float64{90, 120, 0.2}

// Sim is a simulated controller and arm
type Sim struct {
	mu sync.Mutex

	cfg    core.ArmConfig
	arm    *core.ArmController
	axes   [3]*motor
	servo  servo
	logger *zap.SugaredLogger

	clock    clk.Clock
	started  time.Time
	tick     uint64
	exchange uint64
	now      uint64 // microseconds

	rx *protocol.LineBuffer
	tx *protocol.FifoBuffer

	pressed   bool
	maxDepth  int
	overflows int
	rebooted  bool
	closed    bool
}

// New powers on a simulated arm
func New(opts Options) (*Sim, error) {
	cfg := core.DefaultArmConfig()
	if opts.Arm != nil {
		cfg = *opts.Arm
	}
	start := opts.Start
	if start == ([3]float64{}) {
		start = DefaultStart
	}
	if opts.Tick <= 0 {
		opts.Tick = 20 * time.Microsecond
	}
	if opts.Exchange <= 0 {
		opts.Exchange = 2 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clk.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	s := &Sim{
		cfg:      cfg,
		logger:   opts.Logger,
		clock:    opts.Clock,
		started:  opts.Clock.Now(),
		tick:     uint64(opts.Tick.Microseconds()),
		exchange: uint64(opts.Exchange.Microseconds()),
		rx:       protocol.NewLineBuffer(),
		tx:       protocol.NewFifoBuffer(4096),
	}
	for i, ac := range []core.AxisConfig{cfg.Bottom, cfg.Top, cfg.Rail} {
		s.axes[i] = newMotor(ac, start[i])
	}

	arm, err := core.NewArmController(cfg, core.Peripherals{
		GPIO:  gpio{s},
		Servo: &s.servo,
		Magnets: [2]core.AnalogInput{
			analog(opts.Magnets[0]),
			analog(opts.Magnets[1]),
		},
		Delay:  func(us uint32) { s.now += uint64(us) },
		Reboot: func() { s.rebooted = true },
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start simulated controller")
	}
	s.arm = arm
	return s, nil
}

// Write feeds command lines to the controller
func (s *Sim) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.advance()
	for _, c := range b {
		line, ok := s.rx.Push(c)
		if ok {
			s.handle(line)
		}
	}
	return len(b), nil
}

// Read returns controller output. With nothing to send it behaves like a
// read timeout.
func (s *Sim) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.tx.IsEmpty() {
		s.advance()
	}
	if s.tx.IsEmpty() {
		return 0, io.EOF
	}
	return s.tx.Read(b), nil
}

// Flush implements serial.Port
func (s *Sim) Flush() error {
	return nil
}

// Close implements serial.Port
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Sim) handle(line []byte) {
	resp, err := s.arm.HandleLine(line)
	if err != nil {
		if errors.Is(err, core.ErrQueueOverflow) {
			s.overflows++
		}
		s.logger.Debugw("controller rejected line", "line", string(line), "error", err)
	}
	if resp != nil {
		out := append(protocol.Append(nil, resp), '\n')
		if s.tx.Write(out) < len(out) {
			s.logger.Warnw("simulated transmit buffer full", "dropped", protocol.Encode(resp))
		}
	}
	if n := s.arm.Queue().Len(); n > s.maxDepth {
		s.maxDepth = n
	}
}

// advance runs the main loop for one exchange, or up to the clock if it is
// further ahead
func (s *Sim) advance() {
	until := s.now + s.exchange
	if wall := uint64(s.clock.Since(s.started).Microseconds()); wall > until {
		until = wall
	}
	for s.now < until {
		s.now += s.tick
		s.arm.Run(uint32(s.now))
		// a press lasts one loop pass
		s.pressed = false
	}
}

// PressChessButton presses the chess clock button for one main loop pass
func (s *Sim) PressChessButton() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressed = true
}

// MaxQueueDepth is the deepest the motion queue has been
func (s *Sim) MaxQueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDepth
}

// Overflows counts waypoints the controller rejected for a full queue
func (s *Sim) Overflows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflows
}

// Joints returns the physical joint values: degrees, degrees, metres
func (s *Sim) Joints() [3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var j [3]float64
	for i, m := range s.axes {
		j[i] = m.joint()
	}
	return j
}

// Gripped reports whether the claw is closed
func (s *Sim) Gripped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arm.Gripper().IsClosed()
}

// ServoAngle returns the last angle the claw servo was driven to
func (s *Sim) ServoAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servo.angle
}

// Rebooted reports whether the host asked for the bootloader
func (s *Sim) Rebooted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebooted
}

// Halted reports the controller's fault state
func (s *Sim) Halted() (bool, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arm.Halted()
}

// Elapsed is the simulated time since power on
func (s *Sim) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.now) * time.Microsecond
}

// motor follows the step and direction outputs of one driver. Its position
// is counted in micro-steps from the point where the limit switch opens.
type motor struct {
	cfg      core.AxisConfig
	perJoint float64 // micro-steps per joint unit
	position int64
	stepHigh bool
	dirHigh  bool
}

func newMotor(cfg core.AxisConfig, joint float64) *motor {
	m := &motor{
		cfg:      cfg,
		perJoint: float64(cfg.StepSize) * core.StepsPerRevolution / 360 * float64(cfg.Ratio),
	}
	m.position = int64(math.Round((joint - float64(cfg.HomeAngle)) * m.perJoint))
	return m
}

func (m *motor) setStep(high bool) {
	// drivers step on the falling edge
	if m.stepHigh && !high {
		// SetDirection drives the pin high for clockwise
		dir := core.CounterClockwise
		if m.dirHigh {
			dir = core.Clockwise
		}
		if dir == m.cfg.Positive {
			m.position++
		} else {
			m.position--
		}
	}
	m.stepHigh = high
}

// limitOpen is the pulled up switch input: high until the axis reaches it
func (m *motor) limitOpen() bool {
	return m.position > 0
}

func (m *motor) joint() float64 {
	return float64(m.cfg.HomeAngle) + float64(m.position)/m.perJoint
}

// gpio wires controller pins to the simulated motors and button
type gpio struct{ s *Sim }

type outputFunc func(high bool)

func (f outputFunc) Set(high bool) { f(high) }

type inputFunc func() bool

func (f inputFunc) Get() bool { return f() }

func (g gpio) ConfigureOutput(pin core.GPIOPin) (core.OutputPin, error) {
	for _, m := range g.s.axes {
		switch pin {
		case m.cfg.Step:
			return outputFunc(m.setStep), nil
		case m.cfg.Dir:
			return outputFunc(func(high bool) { m.dirHigh = high }), nil
		}
	}
	// microstep select and anything unwired
	return outputFunc(func(bool) {}), nil
}

func (g gpio) ConfigureInputPullUp(pin core.GPIOPin) (core.InputPin, error) {
	for _, m := range g.s.axes {
		if pin == m.cfg.Limit {
			return inputFunc(m.limitOpen), nil
		}
	}
	if pin == g.s.cfg.ChessButton {
		return inputFunc(func() bool { return !g.s.pressed }), nil
	}
	return nil, errors.Errorf("pin %d is not wired in the simulation", pin)
}

type servo struct{ angle int }

func (s *servo) SetAngle(angle int) error {
	if angle < 0 || angle > 180 {
		return errors.Errorf("servo angle %d out of range", angle)
	}
	s.angle = angle
	return nil
}

type analog uint16

func (a analog) Get() uint16 { return uint16(a) }
