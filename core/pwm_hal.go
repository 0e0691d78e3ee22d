package core

// Servo is a hobby servo on a PWM channel. tinygo.org/x/drivers/servo.Servo
// satisfies it.
type Servo interface {
	// SetAngle moves the horn to angle degrees (0-180)
	SetAngle(angle int) error
}

// Gripper opens and closes the claw through a servo
type Gripper struct {
	servo        Servo
	GripAngle    int
	ReleaseAngle int
	closed       bool
}

// NewGripper creates a gripper; a nil servo makes every call a no-op
func NewGripper(s Servo, gripAngle, releaseAngle int) *Gripper {
	return &Gripper{servo: s, GripAngle: gripAngle, ReleaseAngle: releaseAngle}
}

// Grip closes the claw
func (g *Gripper) Grip() error {
	g.closed = true
	if g.servo == nil {
		return nil
	}
	return g.servo.SetAngle(g.GripAngle)
}

// Release opens the claw
func (g *Gripper) Release() error {
	g.closed = false
	if g.servo == nil {
		return nil
	}
	return g.servo.SetAngle(g.ReleaseAngle)
}

// IsClosed reports the last commanded state
func (g *Gripper) IsClosed() bool {
	return g.closed
}
