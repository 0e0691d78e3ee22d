// Package motion streams Cartesian claw moves to the arm controller as
// queued joint waypoints, keeping the controller queue from overflowing.
package motion

import (
	"context"
	"math"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/kinematics"
	"github.com/02alexander/robby-fischer/host/mcu"
	"github.com/02alexander/robby-fischer/protocol"
)

// Link is the request/response channel to the controller. *mcu.MCU
// implements it.
type Link interface {
	mcu.Requester
	Send(cmd protocol.Command) error
}

// Axis selects one joint for direct moves
type Axis int

// Axes of the arm
const (
	AxisBottom Axis = iota
	AxisTop
	AxisRail
)

func (a Axis) String() string {
	switch a {
	case AxisBottom:
		return "bottom"
	case AxisTop:
		return "top"
	case AxisRail:
		return "rail"
	}
	return "unknown"
}

// Manager owns the host's idea of where the claw is. It is not safe for
// concurrent use; all motion is issued from one goroutine.
type Manager struct {
	link   Link
	arm    kinematics.Arm
	cfg    Config
	clock  clk.Clock
	logger *zap.SugaredLogger

	claw   r3.Vec
	offset r3.Vec

	// last depth and capacity reported by qs
	depth    int
	capacity int
	// upper bound on entries sent but not yet started
	outstanding int
}

// NewManager creates a Manager. A nil clock uses the wall clock.
func NewManager(link Link, arm kinematics.Arm, cfg Config, clock clk.Clock, logger *zap.SugaredLogger) *Manager {
	if clock == nil {
		clock = clk.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		link:     link,
		arm:      arm,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		capacity: protocol.QueueCapacity,
	}
}

// Claw returns the current claw position, offset included
func (m *Manager) Claw() r3.Vec {
	return m.claw
}

// SetOffset sets the translation added to kinematic positions
func (m *Manager) SetOffset(offset r3.Vec) {
	m.offset = offset
}

// Offset returns the translation added to kinematic positions
func (m *Manager) Offset() r3.Vec {
	return m.offset
}

// Outstanding returns how many waypoints may still be queued
func (m *Manager) Outstanding() int {
	return m.outstanding
}

// Correct applies the configured bias correction
func (m *Manager) Correct(pos r3.Vec) r3.Vec {
	return m.cfg.Correction.Apply(pos)
}

// Linspace returns n evenly spaced points from a to b inclusive. n is raised
// to 2 if smaller.
func Linspace(a, b r3.Vec, n int) []r3.Vec {
	if n < 2 {
		n = 2
	}
	ts := floats.Span(make([]float64, n), 0, 1)
	d := r3.Sub(b, a)
	return lo.Map(ts, func(t float64, _ int) r3.Vec {
		return r3.Add(a, r3.Scale(t, d))
	})
}

// Waypoints plans a smooth move from the current claw position to the
// corrected target without sending anything. An unreachable waypoint fails
// the whole plan.
func (m *Manager) Waypoints(pos r3.Vec) ([]protocol.Queue, r3.Vec, error) {
	target := m.Correct(pos)
	start := m.claw
	n := int(r3.Norm(r3.Sub(target, start)) * m.cfg.PointsPerMeter)

	points := Linspace(start, target, n)
	entries := make([]protocol.Queue, 0, len(points))
	for i, p := range points {
		j, err := m.arm.Angles(r3.Sub(p, m.offset))
		if err != nil {
			return nil, target, errors.Wrapf(err, "waypoint %d of %d", i+1, len(points))
		}
		entries = append(entries, queueEntry(j, m.cfg.SpeedFactor(start, p, target)))
	}
	return entries, target, nil
}

// SmoothMoveTo moves the claw in a straight line to pos, slowing down near
// both ends, and returns once the controller queue has drained
func (m *Manager) SmoothMoveTo(ctx context.Context, pos r3.Vec) error {
	entries, target, err := m.Waypoints(pos)
	if err != nil {
		return err
	}
	m.logger.Debugw("smooth move", "from", m.claw, "to", target, "waypoints", len(entries))

	if _, _, err := m.QueueSize(ctx); err != nil {
		return err
	}
	for _, chunk := range lo.Chunk(entries, m.cfg.ChunkSize) {
		for _, e := range chunk {
			if err := m.waitBelow(ctx, m.highWater()); err != nil {
				return err
			}
			if err := m.link.Send(e); err != nil {
				return err
			}
			m.outstanding++
		}
		if _, _, err := m.QueueSize(ctx); err != nil {
			return err
		}
	}
	if err := m.waitBelow(ctx, 1); err != nil {
		return err
	}
	if err := m.sleep(ctx, m.cfg.SettleDelay); err != nil {
		return err
	}
	if err := m.SyncPos(ctx); err != nil {
		return err
	}
	m.claw = target
	return nil
}

// SmoothMoveZ moves the claw vertically to z
func (m *Manager) SmoothMoveZ(ctx context.Context, z float64) error {
	pos := m.claw
	pos.Z = z
	return m.SmoothMoveTo(ctx, pos)
}

// MoveClawTo queues a single full speed move to pos without waiting
func (m *Manager) MoveClawTo(pos r3.Vec) error {
	j, err := m.arm.Angles(r3.Sub(pos, m.offset))
	if err != nil {
		return err
	}
	if err := m.link.Send(queueEntry(j, 1)); err != nil {
		return err
	}
	m.outstanding++
	m.claw = pos
	return nil
}

// MoveClaw moves the claw by delta
func (m *Manager) MoveClaw(delta r3.Vec) error {
	return m.MoveClawTo(r3.Add(m.claw, delta))
}

// MoveAxis sends a direct single axis move, bypassing the queue. value is in
// degrees for the links and metres for the rail.
func (m *Manager) MoveAxis(axis Axis, value float64) error {
	switch axis {
	case AxisBottom:
		return m.link.Send(protocol.MoveBottomArm{Angle: float32(value)})
	case AxisTop:
		return m.link.Send(protocol.MoveTopArm{Angle: float32(value)})
	case AxisRail:
		return m.link.Send(protocol.MoveSideways{Offset: float32(value)})
	}
	return errors.Errorf("unknown axis %d", axis)
}

// SyncPos reads the joint position back from the controller and updates the
// claw position
func (m *Manager) SyncPos(ctx context.Context) error {
	return m.retry(ctx, m.cfg.PollInterval, func() error {
		p, err := mcu.Query[protocol.PositionReport](m.link, protocol.Position{})
		if err != nil {
			return err
		}
		m.claw = r3.Add(m.arm.Position(kinematics.Joints{
			Bottom: float64(p.Bottom),
			Top:    float64(p.Top),
			Rail:   float64(p.Rail),
		}), m.offset)
		return nil
	})
}

// QueueSize returns the controller queue depth and capacity
func (m *Manager) QueueSize(ctx context.Context) (int, int, error) {
	err := m.retry(ctx, 0, func() error {
		if err := m.sleep(ctx, m.cfg.QueueRetry); err != nil {
			return err
		}
		qs, err := mcu.Query[protocol.QueueState](m.link, protocol.QueueSize{})
		if err != nil {
			return err
		}
		m.depth = int(qs.Len)
		if qs.Cap > 0 {
			m.capacity = int(qs.Cap)
		}
		m.outstanding = m.depth
		return nil
	})
	return m.depth, m.capacity, err
}

// WaitIdle blocks until the controller queue is empty
func (m *Manager) WaitIdle(ctx context.Context) error {
	if _, _, err := m.QueueSize(ctx); err != nil {
		return err
	}
	return m.waitBelow(ctx, 1)
}

// Grip closes the claw
func (m *Manager) Grip(ctx context.Context) error {
	return m.actuateClaw(ctx, protocol.Grip{})
}

// Release opens the claw
func (m *Manager) Release(ctx context.Context) error {
	return m.actuateClaw(ctx, protocol.Release{})
}

func (m *Manager) actuateClaw(ctx context.Context, cmd protocol.Command) error {
	if err := m.sleep(ctx, m.cfg.GripPreDelay); err != nil {
		return err
	}
	if err := m.link.Send(cmd); err != nil {
		return err
	}
	return m.sleep(ctx, m.cfg.ClawChangeDelay)
}

// ChessButton reports whether the chess clock button was pressed since the
// last call
func (m *Manager) ChessButton(ctx context.Context) (bool, error) {
	var pressed bool
	err := m.retry(ctx, m.cfg.QueueRetry, func() error {
		s, err := mcu.Query[protocol.ChessButtonState](m.link, protocol.ChessButton{})
		pressed = s.Pressed
		return err
	})
	return pressed, err
}

// Magnets returns the two hall sensor readings
func (m *Manager) Magnets(ctx context.Context) (float32, float32, error) {
	var r protocol.MagnetReading
	err := m.retry(ctx, m.cfg.QueueRetry, func() error {
		var err error
		r, err = mcu.Query[protocol.MagnetReading](m.link, protocol.Magnets{})
		return err
	})
	return r.A, r.B, err
}

// highWater is the outstanding count at which sending stops
func (m *Manager) highWater() int {
	limit := m.cfg.HighWater
	if m.capacity > 0 && m.capacity < limit {
		limit = m.capacity
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// waitBelow polls until fewer than limit waypoints can be outstanding
func (m *Manager) waitBelow(ctx context.Context, limit int) error {
	for m.outstanding >= limit {
		if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
			return err
		}
		if err := m.SyncPos(ctx); err != nil {
			return err
		}
		if _, _, err := m.QueueSize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// retry repeats f until it succeeds or fails with an error that a repeat
// cannot fix
func (m *Manager) retry(ctx context.Context, backoff time.Duration, f func() error) error {
	for attempt := 1; ; attempt++ {
		err := f()
		if err == nil || !mcu.Retryable(err) {
			return err
		}
		m.logger.Debugw("retrying controller exchange", "attempt", attempt, "error", err)
		if err := m.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func queueEntry(j kinematics.Joints, speed float64) protocol.Queue {
	return protocol.Queue{
		Bottom: float32(j.Bottom),
		Top:    float32(j.Top),
		Rail:   float32(j.Rail),
		Speed:  float32(math.Min(1, speed)),
	}
}
