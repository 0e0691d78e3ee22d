package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/kinematics"
	"github.com/02alexander/robby-fischer/host/mcu"
	"github.com/02alexander/robby-fischer/protocol"
)

// fakeController queues waypoints and starts consumePerPoll of them every
// time the queue depth is queried
type fakeController struct {
	capacity       int
	consumePerPoll int
	queue          []protocol.Queue
	pos            protocol.PositionReport
	pressed        bool

	sent      []protocol.Command
	maxDepth  int
	overflows int
	timeouts  int
	fault     bool
}

func (f *fakeController) Send(cmd protocol.Command) error {
	f.sent = append(f.sent, cmd)
	if q, ok := cmd.(protocol.Queue); ok {
		if len(f.queue) >= f.capacity {
			f.overflows++
			return nil
		}
		f.queue = append(f.queue, q)
		if len(f.queue) > f.maxDepth {
			f.maxDepth = len(f.queue)
		}
	}
	return nil
}

func (f *fakeController) Request(cmd protocol.Command) (protocol.Response, error) {
	if f.fault {
		return nil, &mcu.FaultError{Code: protocol.FaultHomingTimeout}
	}
	if f.timeouts > 0 {
		f.timeouts--
		return nil, mcu.ErrTimeout
	}
	switch cmd.(type) {
	case protocol.QueueSize:
		for i := 0; i < f.consumePerPoll && len(f.queue) > 0; i++ {
			e := f.queue[0]
			f.queue = f.queue[1:]
			f.pos = protocol.PositionReport{Bottom: e.Bottom, Top: e.Top, Rail: e.Rail}
		}
		return protocol.QueueState{Len: uint32(len(f.queue)), Cap: uint32(f.capacity)}, nil
	case protocol.Position:
		return f.pos, nil
	case protocol.ChessButton:
		p := f.pressed
		f.pressed = false
		return protocol.ChessButtonState{Pressed: p}, nil
	case protocol.Magnets:
		return protocol.MagnetReading{A: 0.25, B: 0.75}, nil
	}
	return protocol.PositionReport{}, nil
}

func (f *fakeController) queued() []protocol.Queue {
	var out []protocol.Queue
	for _, c := range f.sent {
		if q, ok := c.(protocol.Queue); ok {
			out = append(out, q)
		}
	}
	return out
}

// drive runs f while advancing the mock clock until f returns
func drive(mc *clk.Mock, f func() error) error {
	done := make(chan error, 1)
	go func() { done <- f() }()
	for {
		select {
		case err := <-done:
			return err
		default:
			mc.Add(10 * time.Millisecond)
		}
	}
}

func newTestManager(t *testing.T, start r3.Vec) (*Manager, *fakeController, *clk.Mock) {
	t.Helper()
	arm := kinematics.DefaultArm()
	j, err := arm.Angles(start)
	test.That(t, err, test.ShouldBeNil)

	fake := &fakeController{
		capacity:       protocol.QueueCapacity,
		consumePerPoll: 2,
		pos:            protocol.PositionReport{Bottom: float32(j.Bottom), Top: float32(j.Top), Rail: float32(j.Rail)},
	}
	mc := clk.NewMock()
	m := NewManager(fake, arm, DefaultConfig(), mc, zaptest.NewLogger(t).Sugar())
	test.That(t, drive(mc, func() error { return m.SyncPos(context.Background()) }), test.ShouldBeNil)
	test.That(t, r3.Norm(r3.Sub(m.Claw(), start)), test.ShouldBeLessThan, 1e-5)
	return m, fake, mc
}

func TestCorrection(t *testing.T) {
	c := DefaultConfig().Correction

	near := r3.Vec{X: 0.05, Y: 0.2, Z: 0.1}
	test.That(t, c.Apply(near), test.ShouldResemble, near)

	far := c.Apply(r3.Vec{X: 0.35, Y: 0.2, Z: 0.1})
	test.That(t, far.X, test.ShouldAlmostEqual, 0.351, 1e-12)
	test.That(t, far.Y, test.ShouldEqual, 0.2)
	test.That(t, far.Z, test.ShouldAlmostEqual, 0.1+(0.351-0.075)/(0.35-0.075)*0.002, 1e-12)
}

func TestSpeedFactor(t *testing.T) {
	cfg := DefaultConfig()
	start, dst := r3.Vec{}, r3.Vec{X: 1}

	test.That(t, cfg.SpeedFactor(start, start, dst), test.ShouldAlmostEqual, 0.2, 1e-12)
	test.That(t, cfg.SpeedFactor(start, r3.Vec{X: 0.025}, dst), test.ShouldAlmostEqual, 0.6, 1e-12)
	test.That(t, cfg.SpeedFactor(start, r3.Vec{X: 0.5}, dst), test.ShouldEqual, 1.0)
	test.That(t, cfg.SpeedFactor(start, r3.Vec{X: 0.99}, dst), test.ShouldAlmostEqual, 0.36, 1e-9)
}

func TestLinspace(t *testing.T) {
	a, b := r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 2, Y: 2, Z: -1}

	pts := Linspace(a, b, 0)
	test.That(t, pts, test.ShouldResemble, []r3.Vec{a, b})

	pts = Linspace(a, b, 5)
	test.That(t, pts, test.ShouldHaveLength, 5)
	test.That(t, pts[0], test.ShouldResemble, a)
	test.That(t, pts[4], test.ShouldResemble, b)
	test.That(t, pts[2].X, test.ShouldAlmostEqual, 1.5, 1e-12)
	test.That(t, pts[2].Z, test.ShouldAlmostEqual, 1, 1e-12)
}

func TestSmoothMoveTo(t *testing.T) {
	start := r3.Vec{X: 0.2, Y: 0.1, Z: 0.1}
	m, fake, mc := newTestManager(t, start)
	target := r3.Vec{X: 0.2, Y: 0.3, Z: 0.1}

	err := drive(mc, func() error { return m.SmoothMoveTo(context.Background(), target) })
	test.That(t, err, test.ShouldBeNil)

	corrected := m.Correct(target)
	test.That(t, m.Claw(), test.ShouldResemble, corrected)

	qs := fake.queued()
	test.That(t, qs, test.ShouldHaveLength, 60)
	test.That(t, fake.overflows, test.ShouldEqual, 0)
	test.That(t, fake.maxDepth, test.ShouldBeLessThanOrEqualTo, protocol.QueueCapacity)
	test.That(t, fake.queue, test.ShouldBeEmpty)

	test.That(t, qs[0].Speed, test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, qs[30].Speed, test.ShouldEqual, float32(1))
	test.That(t, qs[59].Speed, test.ShouldAlmostEqual, 0.2, 1e-6)

	j, err := m.arm.Angles(corrected)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, qs[59].Bottom, test.ShouldAlmostEqual, j.Bottom, 1e-4)
	test.That(t, qs[59].Top, test.ShouldAlmostEqual, j.Top, 1e-4)
	test.That(t, qs[59].Rail, test.ShouldAlmostEqual, j.Rail, 1e-6)
}

func TestSmoothMoveHonoursHighWater(t *testing.T) {
	start := r3.Vec{X: 0.2, Y: 0.1, Z: 0.1}
	m, fake, mc := newTestManager(t, start)
	m.cfg.HighWater = 5
	fake.consumePerPoll = 1

	err := drive(mc, func() error { return m.SmoothMoveTo(context.Background(), r3.Vec{X: 0.25, Y: 0.2, Z: 0.05}) })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fake.maxDepth, test.ShouldBeLessThanOrEqualTo, 5)
	test.That(t, fake.overflows, test.ShouldEqual, 0)
}

func TestSmoothMoveUnreachableSendsNothing(t *testing.T) {
	m, fake, mc := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	before := m.Claw()
	fake.sent = nil

	err := drive(mc, func() error { return m.SmoothMoveTo(context.Background(), r3.Vec{X: 0.7, Y: 0.1, Z: 0.1}) })
	test.That(t, errors.Is(err, kinematics.ErrUnreachable), test.ShouldBeTrue)
	test.That(t, fake.sent, test.ShouldBeEmpty)
	test.That(t, m.Claw(), test.ShouldResemble, before)
}

func TestRetryOnTimeout(t *testing.T) {
	m, fake, mc := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.timeouts = 3
	fake.queue = make([]protocol.Queue, 4)
	fake.consumePerPoll = 0

	var depth, capacity int
	err := drive(mc, func() error {
		var err error
		depth, capacity, err = m.QueueSize(context.Background())
		return err
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth, test.ShouldEqual, 4)
	test.That(t, capacity, test.ShouldEqual, protocol.QueueCapacity)
	test.That(t, m.Outstanding(), test.ShouldEqual, 4)
}

func TestFaultIsNotRetried(t *testing.T) {
	m, fake, mc := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.fault = true

	err := drive(mc, func() error { return m.SyncPos(context.Background()) })
	var fault *mcu.FaultError
	test.That(t, errors.As(err, &fault), test.ShouldBeTrue)
}

func TestCancelledWait(t *testing.T) {
	m, fake, _ := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.queue = make([]protocol.Queue, 3)
	fake.consumePerPoll = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, m.WaitIdle(ctx), test.ShouldEqual, context.Canceled)
}

func TestMoveClawTo(t *testing.T) {
	m, fake, _ := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	m.SetOffset(r3.Vec{Y: 0.05})
	fake.sent = nil

	target := r3.Vec{X: 0, Y: 0.25, Z: 0.15}
	test.That(t, m.MoveClawTo(target), test.ShouldBeNil)
	test.That(t, m.Claw(), test.ShouldResemble, target)

	qs := fake.queued()
	test.That(t, qs, test.ShouldHaveLength, 1)
	test.That(t, qs[0].Speed, test.ShouldEqual, float32(1))
	test.That(t, qs[0].Rail, test.ShouldAlmostEqual, 0.2, 1e-6)

	test.That(t, m.MoveClaw(r3.Vec{Z: -0.05}), test.ShouldBeNil)
	test.That(t, m.Claw().Z, test.ShouldAlmostEqual, 0.1, 1e-12)

	err := m.MoveClawTo(r3.Vec{X: 1})
	test.That(t, errors.Is(err, kinematics.ErrUnreachable), test.ShouldBeTrue)
	test.That(t, m.Claw().Z, test.ShouldAlmostEqual, 0.1, 1e-12)
}

func TestMoveAxis(t *testing.T) {
	m, fake, _ := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.sent = nil

	test.That(t, m.MoveAxis(AxisBottom, 45), test.ShouldBeNil)
	test.That(t, m.MoveAxis(AxisTop, 90), test.ShouldBeNil)
	test.That(t, m.MoveAxis(AxisRail, 0.3), test.ShouldBeNil)
	test.That(t, m.MoveAxis(Axis(7), 1), test.ShouldNotBeNil)
	test.That(t, fake.sent, test.ShouldResemble, []protocol.Command{
		protocol.MoveBottomArm{Angle: 45},
		protocol.MoveTopArm{Angle: 90},
		protocol.MoveSideways{Offset: 0.3},
	})
}

func TestGripWaits(t *testing.T) {
	m, fake, mc := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.sent = nil

	begin := mc.Now()
	test.That(t, drive(mc, func() error { return m.Grip(context.Background()) }), test.ShouldBeNil)
	test.That(t, mc.Since(begin), test.ShouldBeGreaterThanOrEqualTo, 900*time.Millisecond)

	test.That(t, drive(mc, func() error { return m.Release(context.Background()) }), test.ShouldBeNil)
	test.That(t, fake.sent, test.ShouldResemble, []protocol.Command{protocol.Grip{}, protocol.Release{}})
}

func TestChessButtonAndMagnets(t *testing.T) {
	m, fake, mc := newTestManager(t, r3.Vec{X: 0.2, Y: 0.1, Z: 0.1})
	fake.pressed = true

	var pressed bool
	test.That(t, drive(mc, func() error {
		var err error
		pressed, err = m.ChessButton(context.Background())
		return err
	}), test.ShouldBeNil)
	test.That(t, pressed, test.ShouldBeTrue)

	pressed, err := m.ChessButton(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pressed, test.ShouldBeFalse)

	a, b, err := m.Magnets(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a, test.ShouldEqual, float32(0.25))
	test.That(t, b, test.ShouldEqual, float32(0.75))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	cfg.ChunkSize = 0
	cfg.MinSpeed = 2
	cfg.Correction.Span = 0
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "chunk_size")
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_speed")
	test.That(t, err.Error(), test.ShouldContainSubstring, "correction span")
}
