// Package kinematics converts between claw positions and joint values for the
// two-link arm mounted on a linear rail.
//
// Arm frame: x points away from the arm base along the board, y runs along
// the rail and z points up. The bottom link pivots at the origin of the x-z
// plane, the top link hangs off its end and the claw sits at the tip of the
// top link.
package kinematics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Link lengths in metres
const (
	DefaultBottomLength = 0.29
	DefaultTopLength    = 0.29
)

// acosSlack absorbs rounding at the edges of the workspace
const acosSlack = 1e-9

// ErrUnreachable is returned for positions outside the annulus the two links
// can reach
var ErrUnreachable = errors.New("position unreachable")

// BoardToArm is the translation from the board frame (origin at the corner of
// h8) to the arm frame, in metres
var BoardToArm = r3.Vec{X: 0.1411907894023803, Y: 0.022, Z: 0.0243057524245006}

// Arm holds the link lengths of the planar part of the arm
type Arm struct {
	BottomLength float64 `json:"bottom_length"`
	TopLength    float64 `json:"top_length"`
}

// Joints are the values sent to the controller: link angles in degrees and
// the rail offset in metres
type Joints struct {
	Bottom float64
	Top    float64
	Rail   float64
}

// DefaultArm returns the dimensions of the built arm
func DefaultArm() Arm {
	return Arm{BottomLength: DefaultBottomLength, TopLength: DefaultTopLength}
}

// JointAngles solves the planar inverse kinematics for the claw at (x, z).
// The result is in radians in the controller's convention.
func (a Arm) JointAngles(x, z float64) (float64, float64, error) {
	l1, l2 := a.BottomLength, a.TopLength
	theta := math.Atan2(z, x)
	d := math.Hypot(x, z)

	c := (d*d - l1*l1 - l2*l2) / (2 * l1 * l2)
	if math.IsNaN(c) || c < -1-acosSlack || c > 1+acosSlack {
		return 0, 0, errors.Wrapf(ErrUnreachable, "(%.4f, %.4f) is %.4f m from the shoulder", x, z, d)
	}
	c = math.Max(-1, math.Min(1, c))

	q2 := -math.Acos(c)
	thetak := math.Atan2(l2*math.Sin(q2), l1+l2*math.Cos(q2))
	q1 := theta - thetak
	return math.Pi - q1, -q2, nil
}

// Angles converts an arm frame position into joint values
func (a Arm) Angles(pos r3.Vec) (Joints, error) {
	t1, t2, err := a.JointAngles(pos.X, pos.Z)
	if err != nil {
		return Joints{}, err
	}
	return Joints{
		Bottom: degrees(t1),
		Top:    degrees(t2),
		Rail:   pos.Y,
	}, nil
}

// PlanarPosition is the forward kinematics of the two links. Angles are in
// degrees; the result is (x, z).
func (a Arm) PlanarPosition(bottom, top float64) r2.Vec {
	var origin r2.Vec
	bottomLink := r2.Vec{X: -a.BottomLength}
	topLink := r2.Vec{X: -a.TopLength}
	elbow := r2.Add(bottomLink, r2.Rotate(topLink, -radians(top), origin))
	return r2.Rotate(elbow, -radians(bottom), origin)
}

// Position converts joint values back into an arm frame position
func (a Arm) Position(j Joints) r3.Vec {
	p := a.PlanarPosition(j.Bottom, j.Top)
	return r3.Vec{X: p.X, Y: j.Rail, Z: p.Y}
}

// Reach returns the largest distance from the shoulder the claw can reach
func (a Arm) Reach() float64 {
	return a.BottomLength + a.TopLength
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }
