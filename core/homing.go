package core

import "errors"

var ErrHomingTimeout = errors.New("homing: limit switch not reached")

// HomingConfig controls a homing run. Velocities are in degrees per second.
// MaxSteps bounds each phase in full step pulses; zero leaves it unbounded.
type HomingConfig struct {
	SlowVelocity float32
	FastVelocity float32
	MaxSteps     uint32
}

// Home drives the axis into its limit switch and zeroes the position there.
//
// The switch input is pulled up, so it reads high while released. The axis
// first runs backwards fast until the switch closes, then creeps forward
// slowly until it opens again. That edge becomes position zero.
func (a *Axis) Home(limit InputPin, cfg HomingConfig, delay func(us uint32)) error {
	saved := a.stepTime
	defer func() { a.stepTime = saved }()

	a.homed = false

	a.SetVelocity(cfg.FastVelocity)
	a.SetDirection(a.positive.Opposite())
	if err := a.stepWhile(func() bool { return limit.Get() }, cfg.MaxSteps, delay); err != nil {
		return err
	}

	a.SetVelocity(cfg.SlowVelocity)
	a.SetDirection(a.positive)
	if err := a.stepWhile(func() bool { return !limit.Get() }, cfg.MaxSteps, delay); err != nil {
		return err
	}

	a.current = 0
	a.target = 0
	a.homed = true
	return nil
}

// stepWhile toggles the step output while cond holds
func (a *Axis) stepWhile(cond func() bool, maxSteps uint32, delay func(us uint32)) error {
	limit := uint64(maxSteps) * 2
	var toggles uint64
	for cond() {
		if maxSteps != 0 && toggles >= limit {
			a.Stop()
			return ErrHomingTimeout
		}
		a.Step()
		toggles++
		delay(a.stepTime)
	}
	return nil
}
