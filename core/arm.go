package core

import (
	"errors"
	"math"

	"github.com/02alexander/robby-fischer/protocol"
)

var (
	ErrHalted        = errors.New("controller halted")
	ErrInvalidTarget = errors.New("non-finite target")
)

// Peripherals are the board resources the controller drives besides the
// stepper pins. Nil members fall back to harmless defaults.
type Peripherals struct {
	GPIO    GPIODriver // nil uses the registered driver
	Servo   Servo
	Magnets [2]AnalogInput
	Delay   func(us uint32) // nil uses Delay
	Reboot  func()
}

// ArmController owns the three axes and every other actuator and sensor of
// the arm. It is driven entirely from the main loop: Run advances motion and
// HandleLine executes host commands.
type ArmController struct {
	cfg ArmConfig

	bottom, top, rail                *Axis
	bottomLimit, topLimit, railLimit InputPin
	chessButton                      InputPin

	gripper *Gripper
	magnets [2]AnalogInput
	delay   func(us uint32)
	reboot  func()

	queue    *MotionQueue
	registry *CommandRegistry

	sidewaysCalibrated bool
	armCalibrated      bool
	chessPressed       bool

	halted bool
	fault  uint32
}

// NewArmController configures all pins and registers the command handlers
func NewArmController(cfg ArmConfig, p Peripherals) (*ArmController, error) {
	gpio := p.GPIO
	if gpio == nil {
		gpio = MustGPIO()
	}

	c := &ArmController{
		cfg:      cfg,
		gripper:  NewGripper(p.Servo, cfg.GripAngle, cfg.ReleaseAngle),
		magnets:  p.Magnets,
		delay:    p.Delay,
		reboot:   p.Reboot,
		queue:    NewMotionQueue(cfg.QueueCapacity),
		registry: NewCommandRegistry(),
	}
	if c.delay == nil {
		c.delay = Delay
	}

	var err error
	if c.bottom, c.bottomLimit, err = newAxis(gpio, cfg.Bottom); err != nil {
		return nil, err
	}
	if c.top, c.topLimit, err = newAxis(gpio, cfg.Top); err != nil {
		return nil, err
	}
	if c.rail, c.railLimit, err = newAxis(gpio, cfg.Rail); err != nil {
		return nil, err
	}
	if c.chessButton, err = gpio.ConfigureInputPullUp(cfg.ChessButton); err != nil {
		return nil, err
	}

	c.registerCommands()
	return c, nil
}

// Registry exposes the command table
func (c *ArmController) Registry() *CommandRegistry {
	return c.registry
}

// Queue exposes the motion queue
func (c *ArmController) Queue() *MotionQueue {
	return c.queue
}

// Axes returns the bottom, top and rail axes
func (c *ArmController) Axes() (bottom, top, rail *Axis) {
	return c.bottom, c.top, c.rail
}

// Gripper returns the claw
func (c *ArmController) Gripper() *Gripper {
	return c.gripper
}

// Calibrated reports whether the rail and the arm joints have been homed
func (c *ArmController) Calibrated() (sideways, arm bool) {
	return c.sidewaysCalibrated, c.armCalibrated
}

// Halted reports whether the controller is halted and with which fault code
func (c *ArmController) Halted() (bool, uint32) {
	return c.halted, c.fault
}

// Run is polled from the main loop
func (c *ArmController) Run(now uint32) {
	if !c.chessButton.Get() {
		c.chessPressed = true
	}
	if c.halted {
		return
	}

	c.bottom.Run(now)
	c.top.Run(now)
	c.rail.Run(now)

	if c.queue.Len() == 0 || !c.atTarget() {
		return
	}
	if e, ok := c.queue.Pop(); ok {
		c.start(e)
	}
}

func (c *ArmController) atTarget() bool {
	m := c.cfg.TargetMargin
	return c.bottom.IsAtTargetMargin(m) &&
		c.top.IsAtTargetMargin(m) &&
		c.rail.IsAtTargetMargin(m)
}

// start aims every axis at e. Velocities are scaled so the axis with the
// longest move at its base velocity sets the duration and all axes arrive
// together.
func (c *ArmController) start(e MotionEntry) {
	axes := [3]*Axis{c.bottom, c.top, c.rail}
	cfgs := [3]*AxisConfig{&c.cfg.Bottom, &c.cfg.Top, &c.cfg.Rail}
	joints := [3]float32{e.Bottom, e.Top, e.Rail}

	var targets [3]int64
	var deltas [3]float32
	var duration float32
	for i, a := range axes {
		targets[i] = a.angleToPosition(joints[i] * cfgs[i].Ratio)
		deltas[i] = a.stepsToAngle(abs64(targets[i] - a.Position()))
		if cfgs[i].BaseVelocity > 0 {
			if t := deltas[i] / cfgs[i].BaseVelocity; t > duration {
				duration = t
			}
		}
	}
	duration /= c.clampSpeed(e.Speed)

	for i, a := range axes {
		if duration > 0 {
			a.SetVelocity(deltas[i] / duration)
		}
		a.GotoPosition(targets[i])
	}
}

// clampSpeed maps a requested speed scale into [MinSpeedScale, 1]
func (c *ArmController) clampSpeed(s float32) float32 {
	floor := c.cfg.MinSpeedScale
	if floor <= 0 || floor > 1 {
		floor = 0.05
	}
	switch {
	case math.IsNaN(float64(s)) || s <= 0:
		return floor
	case s > 1:
		return 1
	case s < floor:
		return floor
	}
	return s
}

// Halt stops every axis where it stands, drops queued motion and refuses
// further motion until reboot.
func (c *ArmController) Halt(code uint32) {
	c.bottom.Stop()
	c.top.Stop()
	c.rail.Stop()
	c.queue.Reset()
	c.halted = true
	c.fault = code
}

// HandleLine decodes one received line and dispatches it. A nil response
// means nothing is written back.
func (c *ArmController) HandleLine(line []byte) (protocol.Response, error) {
	cmd, err := protocol.DecodeCommand(string(line))
	if err != nil {
		return nil, err
	}
	return c.registry.Dispatch(cmd)
}

// moveTo sets one axis target in joint units at its base velocity
func (c *ArmController) moveTo(a *Axis, cfg *AxisConfig, value float32) error {
	if !finite(value) {
		return ErrInvalidTarget
	}
	a.SetVelocity(cfg.BaseVelocity)
	a.GotoAngle(value * cfg.Ratio)
	return nil
}

// home runs a homing cycle on a and declares its switch angle. A timeout
// halts the controller.
func (c *ArmController) home(a *Axis, limit InputPin, cfg *AxisConfig) error {
	if err := a.Home(limit, cfg.Homing, c.delay); err != nil {
		c.Halt(protocol.FaultHomingTimeout)
		return err
	}
	a.CalibRealAngle(cfg.HomeAngle * cfg.Ratio)
	a.SetVelocity(cfg.BaseVelocity)
	return nil
}

func (c *ArmController) calibrateSideways() error {
	c.queue.Reset()
	c.sidewaysCalibrated = false
	if err := c.home(c.rail, c.railLimit, &c.cfg.Rail); err != nil {
		return err
	}
	c.sidewaysCalibrated = true
	return nil
}

func (c *ArmController) calibrateArm() error {
	c.queue.Reset()
	c.armCalibrated = false
	if err := c.home(c.bottom, c.bottomLimit, &c.cfg.Bottom); err != nil {
		return err
	}
	c.bottom.GotoAngle(c.cfg.BottomClearance * c.cfg.Bottom.Ratio)
	c.bottom.RunToTarget(c.delay)
	if err := c.home(c.top, c.topLimit, &c.cfg.Top); err != nil {
		return err
	}
	c.armCalibrated = true
	return nil
}

func (c *ArmController) position() protocol.PositionReport {
	return protocol.PositionReport{
		Bottom: c.bottom.Angle() / c.cfg.Bottom.Ratio,
		Top:    c.top.Angle() / c.cfg.Top.Ratio,
		Rail:   c.rail.Angle() / c.cfg.Rail.Ratio,
	}
}

// faulted is the reply to motion commands while halted
func (c *ArmController) faulted() (protocol.Response, error) {
	return protocol.FaultReport{Code: c.fault}, ErrHalted
}
