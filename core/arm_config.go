package core

// AxisConfig describes one stepper axis and its limit switch. Ratio converts
// joint units (degrees for the arm joints, metres for the rail) to motor
// degrees. HomeAngle is the joint value at the switch.
type AxisConfig struct {
	Step     GPIOPin
	Dir      GPIOPin
	Mode     [3]GPIOPin
	HasMode  bool
	StepSize StepSize
	Positive Direction
	Limit    GPIOPin

	Ratio        float32
	BaseVelocity float32 // motor degrees per second at speed scale 1
	Homing       HomingConfig
	HomeAngle    float32
}

// ArmConfig is the complete controller wiring and tuning
type ArmConfig struct {
	Bottom AxisConfig
	Top    AxisConfig
	Rail   AxisConfig

	// BottomClearance is the bottom joint angle, in degrees, the arm is
	// raised to between homing the bottom and the top joint
	BottomClearance float32

	ChessButton GPIOPin

	QueueCapacity int
	TargetMargin  int64 // micro-steps

	GripAngle     int
	ReleaseAngle  int
	MinSpeedScale float32
}

// DefaultArmConfig returns the wiring of the reference board
func DefaultArmConfig() ArmConfig {
	return ArmConfig{
		Bottom: AxisConfig{
			Step: 12, Dir: 11, Mode: [3]GPIOPin{15, 14, 13}, HasMode: true,
			StepSize: Div16, Positive: CounterClockwise, Limit: 16,
			Ratio:        5,
			BaseVelocity: 900,
			Homing:       HomingConfig{SlowVelocity: 20, FastVelocity: 500, MaxSteps: 20000},
			HomeAngle:    45,
		},
		Top: AxisConfig{
			Step: 7, Dir: 6, Mode: [3]GPIOPin{10, 9, 8}, HasMode: true,
			StepSize: Div16, Positive: Clockwise, Limit: 18,
			Ratio:        5,
			BaseVelocity: 900,
			Homing:       HomingConfig{SlowVelocity: 20, FastVelocity: 500, MaxSteps: 20000},
			HomeAngle:    160,
		},
		Rail: AxisConfig{
			Step: 2, Dir: 1, Mode: [3]GPIOPin{5, 4, 3}, HasMode: true,
			StepSize: Div16, Positive: CounterClockwise, Limit: 17,
			Ratio:        9000,
			BaseVelocity: 1200,
			Homing:       HomingConfig{SlowVelocity: 20, FastVelocity: 1000, MaxSteps: 40000},
			HomeAngle:    0,
		},
		BottomClearance: 90,
		ChessButton:     20,
		QueueCapacity:   DefaultQueueCapacity,
		TargetMargin:    10,
		GripAngle:       20,
		ReleaseAngle:    90,
		MinSpeedScale:   0.05,
	}
}

// newAxis configures the pins of c and builds its Axis and limit input
func newAxis(gpio GPIODriver, c AxisConfig) (*Axis, InputPin, error) {
	step, err := gpio.ConfigureOutput(c.Step)
	if err != nil {
		return nil, nil, err
	}
	dir, err := gpio.ConfigureOutput(c.Dir)
	if err != nil {
		return nil, nil, err
	}
	var mode *ModePins
	if c.HasMode {
		mode = &ModePins{}
		if mode.MS1, err = gpio.ConfigureOutput(c.Mode[0]); err != nil {
			return nil, nil, err
		}
		if mode.MS2, err = gpio.ConfigureOutput(c.Mode[1]); err != nil {
			return nil, nil, err
		}
		if mode.MS3, err = gpio.ConfigureOutput(c.Mode[2]); err != nil {
			return nil, nil, err
		}
	}
	limit, err := gpio.ConfigureInputPullUp(c.Limit)
	if err != nil {
		return nil, nil, err
	}
	axis, err := NewAxis(step, dir, c.StepSize, c.Positive, mode)
	if err != nil {
		return nil, nil, err
	}
	axis.SetVelocity(c.BaseVelocity)
	return axis, limit, nil
}
