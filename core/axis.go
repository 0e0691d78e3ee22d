package core

// Axis step scheduler. One Axis drives one stepper driver through step,
// direction and optional microstep-select outputs. Run is a cooperative poll:
// it never blocks, so every axis can share the main loop.

import (
	"errors"
	"math"
)

const (
	StepsPerRevolution      = 200
	MaxRevolutionsPerSecond = 6.25

	// MaxVelocity is the velocity clamp in degrees per second
	MaxVelocity = MaxRevolutionsPerSecond * StepsPerRevolution

	// DefaultStepTime is the half period used before any velocity is set
	DefaultStepTime = 4000
)

var ErrInvalidStepSize = errors.New("invalid step size")

// StepSize is the microstep subdivision factor
type StepSize uint8

const (
	Div1  StepSize = 1
	Div2  StepSize = 2
	Div4  StepSize = 4
	Div8  StepSize = 8
	Div16 StepSize = 16
)

// modeLevels returns the ms1, ms2, ms3 levels selecting s
func (s StepSize) modeLevels() (ms1, ms2, ms3 bool, ok bool) {
	switch s {
	case Div1:
		return false, false, false, true
	case Div2:
		return true, false, false, true
	case Div4:
		return false, true, false, true
	case Div8:
		return true, true, false, true
	case Div16:
		return true, true, true, true
	}
	return false, false, false, false
}

// Direction of rotation as seen by the driver's DIR input
type Direction uint8

const (
	Clockwise Direction = iota
	CounterClockwise
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == Clockwise {
		return CounterClockwise
	}
	return Clockwise
}

// ModePins are the microstep select outputs of the driver
type ModePins struct {
	MS1, MS2, MS3 OutputPin
}

// Axis is a single stepper-driven degree of freedom
type Axis struct {
	stepSize StepSize
	stepPin  OutputPin
	dirPin   OutputPin
	mode     *ModePins

	stepHigh bool
	current  int64 // micro-steps
	target   int64 // micro-steps

	lastStep uint32 // time of the last pin toggle, microseconds
	stepTime uint32 // half period, microseconds

	positive  Direction
	direction Direction
	homed     bool
}

// NewAxis creates an axis bound to its outputs. mode may be nil when the
// subdivision is strapped in hardware.
func NewAxis(step, dir OutputPin, size StepSize, positive Direction, mode *ModePins) (*Axis, error) {
	a := &Axis{
		stepPin:  step,
		dirPin:   dir,
		mode:     mode,
		stepTime: DefaultStepTime,
		positive: positive,
	}
	if err := a.SetStepSize(size); err != nil {
		return nil, err
	}
	step.Set(false)
	a.SetDirection(positive)
	return a, nil
}

// SetStepSize selects the subdivision and drives the mode pins to match
func (a *Axis) SetStepSize(size StepSize) error {
	ms1, ms2, ms3, ok := size.modeLevels()
	if !ok {
		return ErrInvalidStepSize
	}
	a.stepSize = size
	if a.mode != nil {
		a.mode.MS1.Set(ms1)
		a.mode.MS2.Set(ms2)
		a.mode.MS3.Set(ms3)
	}
	return nil
}

// StepSize returns the configured subdivision
func (a *Axis) StepSize() StepSize {
	return a.stepSize
}

// SetVelocity sets the speed in degrees per second. The sign is ignored and
// the value is clamped to MaxVelocity.
func (a *Axis) SetVelocity(velocity float32) {
	v := math.Abs(float64(velocity))
	if v > MaxVelocity || math.IsNaN(v) {
		v = MaxVelocity
	}
	microStepsPerSecond := float64(a.stepSize) * StepsPerRevolution * v

	// One period is a high and a low half, each waited for separately
	period := 1e6 * 360 / microStepsPerSecond
	if period >= math.MaxUint32 {
		a.stepTime = math.MaxUint32 / 2
		return
	}
	a.stepTime = uint32(period) / 2
}

// StepTime returns the half period in microseconds
func (a *Axis) StepTime() uint32 {
	return a.stepTime
}

// angleToPosition converts degrees to micro-steps, truncating toward zero
func (a *Axis) angleToPosition(angle float32) int64 {
	return int64(float32(a.stepSize) * (angle / 360 * StepsPerRevolution))
}

// GotoPosition sets the target in micro-steps
func (a *Axis) GotoPosition(position int64) {
	a.target = position
}

// GotoAngle sets the target in degrees. Non-finite angles are ignored.
func (a *Axis) GotoAngle(angle float32) {
	if !finite(angle) {
		return
	}
	a.GotoPosition(a.angleToPosition(angle))
}

// CalibRealAngle declares the current physical angle, moving nothing
func (a *Axis) CalibRealAngle(angle float32) {
	if !finite(angle) {
		return
	}
	pos := a.angleToPosition(angle)
	a.current = pos
	a.target = pos
}

// SetDirection drives the direction output
func (a *Axis) SetDirection(d Direction) {
	a.direction = d
	a.dirPin.Set(d == Clockwise)
}

// Step toggles the step output. The position moves one micro-step on the
// high to low edge only.
func (a *Axis) Step() {
	if a.stepHigh {
		a.stepPin.Set(false)
		a.stepHigh = false
		if a.direction == a.positive {
			a.current++
		} else {
			a.current--
		}
	} else {
		a.stepPin.Set(true)
		a.stepHigh = true
	}
}

// Run is polled from the main loop. It points the direction output at the
// target and toggles the step output once the half period has elapsed.
func (a *Axis) Run(now uint32) {
	a.aim()
	if a.target != a.current && Elapsed(now, a.lastStep) > a.stepTime {
		a.Step()
		a.lastStep = now
	}
}

// aim re-evaluates the direction so a new target reverses travel at once
func (a *Axis) aim() {
	if a.target < a.current {
		a.SetDirection(a.positive.Opposite())
	} else {
		a.SetDirection(a.positive)
	}
}

// RunToTarget drives the axis to its target, blocking between toggles
func (a *Axis) RunToTarget(delay func(us uint32)) {
	for a.target != a.current {
		a.aim()
		a.Step()
		delay(a.stepTime)
	}
}

// IsAtTargetMargin reports whether the axis is within margin micro-steps of
// its target
func (a *Axis) IsAtTargetMargin(margin int64) bool {
	return abs64(a.current-a.target) <= margin
}

// stepsToAngle converts micro-steps to degrees
func (a *Axis) stepsToAngle(steps int64) float32 {
	return float32(steps) / float32(a.stepSize) / StepsPerRevolution * 360
}

// Angle returns the current position in degrees
func (a *Axis) Angle() float32 {
	return a.stepsToAngle(a.current)
}

// TargetAngle returns the target in degrees
func (a *Axis) TargetAngle() float32 {
	return a.stepsToAngle(a.target)
}

// Position returns the current position in micro-steps
func (a *Axis) Position() int64 {
	return a.current
}

// Target returns the target in micro-steps
func (a *Axis) Target() int64 {
	return a.target
}

// Homed reports whether the last homing run completed
func (a *Axis) Homed() bool {
	return a.homed
}

// Stop makes the current position the target
func (a *Axis) Stop() {
	a.target = a.current
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
