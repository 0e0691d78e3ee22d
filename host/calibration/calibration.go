// Package calibration brings the arm from power-on to a known pose by homing
// the rail and the two links.
package calibration

import (
	"context"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/mcu"
	"github.com/02alexander/robby-fischer/host/motion"
	"github.com/02alexander/robby-fischer/protocol"
)

// ErrNotCalibrated is returned when the rail still is not homed after
// MaxAttempts queries
var ErrNotCalibrated = errors.New("controller did not report calibrated")

// State of the coordinator. Ready is terminal.
type State int32

// Calibration states
const (
	Uncalibrated State = iota
	SidewaysHoming
	ArmHoming
	Ready
)

func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case SidewaysHoming:
		return "sideways homing"
	case ArmHoming:
		return "arm homing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Config for the calibration sequence
type Config struct {
	PollInterval time.Duration `json:"poll_interval"`
	SettleDelay  time.Duration `json:"settle_delay"`
	// Claw height the arm is parked at between homing passes
	PoseHeight float64 `json:"pose_height"`
	// Limit on iscal queries, 0 for no limit
	MaxAttempts int `json:"max_attempts"`
}

// DefaultConfig returns the standard calibration timing
func DefaultConfig() Config {
	return Config{
		PollInterval: 100 * time.Millisecond,
		SettleDelay:  100 * time.Millisecond,
		PoseHeight:   0.15,
	}
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var err error
	if c.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("poll_interval must be positive"))
	}
	if c.SettleDelay < 0 {
		err = multierr.Append(err, errors.New("settle_delay cannot be negative"))
	}
	if c.MaxAttempts < 0 {
		err = multierr.Append(err, errors.Errorf("max_attempts cannot be negative, got %d", c.MaxAttempts))
	}
	return err
}

// Coordinator runs the calibration state machine
type Coordinator struct {
	link   motion.Link
	mover  *motion.Manager
	cfg    Config
	clock  clk.Clock
	logger *zap.SugaredLogger

	state atomic.Int32
}

// NewCoordinator creates a coordinator in the Uncalibrated state
func NewCoordinator(link motion.Link, mover *motion.Manager, cfg Config, clock clk.Clock, logger *zap.SugaredLogger) *Coordinator {
	if clock == nil {
		clock = clk.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{
		link:   link,
		mover:  mover,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// State returns the current state. It may be called from any goroutine.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.logger.Infow("calibration state", "from", old, "to", s)
	}
}

// Run homes the rail until the controller reports it calibrated, then homes
// the arm. Arm homing always runs since the controller keeps no flag for it.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.State() == Ready {
		return nil
	}
	for attempt := 1; ; attempt++ {
		if c.cfg.MaxAttempts > 0 && attempt > c.cfg.MaxAttempts {
			return errors.Wrapf(ErrNotCalibrated, "after %d attempts", c.cfg.MaxAttempts)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return err
		}
		s, err := mcu.Query[protocol.CalibrationState](c.link, protocol.IsCalibrated{})
		if err != nil {
			if mcu.Retryable(err) {
				c.logger.Debugw("calibration query failed", "attempt", attempt, "error", err)
				continue
			}
			return err
		}
		if s.Calibrated {
			break
		}
		if err := c.link.Send(protocol.CalibrateSideways{}); err != nil {
			return err
		}
		c.setState(SidewaysHoming)
	}

	c.setState(ArmHoming)
	if err := c.mover.SyncPos(ctx); err != nil {
		return errors.Wrap(err, "could not read position after homing the rail")
	}
	if err := c.RecalibrateArm(ctx); err != nil {
		return err
	}
	c.setState(Ready)
	return nil
}

// RecalibrateArm homes both links again, parking the claw at the pose height
// above the rail between passes
func (c *Coordinator) RecalibrateArm(ctx context.Context) error {
	pose := r3.Vec{X: 0, Y: c.mover.Claw().Y, Z: c.cfg.PoseHeight}
	for pass := 0; pass < 2; pass++ {
		if err := c.link.Send(protocol.CalibrateArm{}); err != nil {
			return err
		}
		if err := c.mover.MoveClawTo(pose); err != nil {
			return errors.Wrap(err, "could not park the claw")
		}
		if err := c.sleep(ctx, c.cfg.SettleDelay); err != nil {
			return err
		}
	}
	if err := c.link.Send(protocol.CalibrateArm{}); err != nil {
		return err
	}
	return c.sleep(ctx, c.cfg.SettleDelay)
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
