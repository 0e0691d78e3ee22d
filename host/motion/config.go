package motion

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"
)

// Correction compensates a bias that grows with distance along x: past
// Threshold the claw lands slightly short and low, reaching GainX and GainZ
// metres at Span.
type Correction struct {
	Threshold float64 `json:"threshold"`
	Span      float64 `json:"span"`
	GainX     float64 `json:"gain_x"`
	GainZ     float64 `json:"gain_z"`
}

// Apply returns the position to command so the claw ends up at pos
func (c Correction) Apply(pos r3.Vec) r3.Vec {
	if pos.X < c.Threshold || c.Span <= c.Threshold {
		return pos
	}
	pos.X += (pos.X - c.Threshold) / (c.Span - c.Threshold) * c.GainX
	// z uses the already corrected x
	pos.Z += (pos.X - c.Threshold) / (c.Span - c.Threshold) * c.GainZ
	return pos
}

// Config tunes trajectory generation and flow control
type Config struct {
	// Waypoints generated per metre of travel
	PointsPerMeter float64 `json:"points_per_meter"`
	// Waypoints sent between queue depth refreshes
	ChunkSize int `json:"chunk_size"`
	// No waypoint is sent while this many may still be queued
	HighWater int `json:"high_water"`

	PollInterval time.Duration `json:"poll_interval"`
	QueueRetry   time.Duration `json:"queue_retry"`
	SettleDelay  time.Duration `json:"settle_delay"`

	// Within this distance of either end of a move the speed scale ramps
	// linearly down to MinSpeed
	SlowdownDistance float64 `json:"slowdown_distance"`
	MinSpeed         float64 `json:"min_speed"`

	GripPreDelay    time.Duration `json:"grip_pre_delay"`
	ClawChangeDelay time.Duration `json:"claw_change_delay"`

	Correction Correction `json:"correction"`
}

// DefaultConfig returns the values the arm was tuned with
func DefaultConfig() Config {
	return Config{
		PointsPerMeter:   300,
		ChunkSize:        20,
		HighWater:        15,
		PollInterval:     100 * time.Millisecond,
		QueueRetry:       10 * time.Millisecond,
		SettleDelay:      300 * time.Millisecond,
		SlowdownDistance: 0.05,
		MinSpeed:         0.2,
		GripPreDelay:     200 * time.Millisecond,
		ClawChangeDelay:  700 * time.Millisecond,
		Correction: Correction{
			Threshold: 0.075,
			Span:      0.35,
			GainX:     0.001,
			GainZ:     0.002,
		},
	}
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var err error
	if c.PointsPerMeter <= 0 {
		err = multierr.Append(err, errors.Errorf("points_per_meter must be positive, got %v", c.PointsPerMeter))
	}
	if c.ChunkSize < 1 {
		err = multierr.Append(err, errors.Errorf("chunk_size must be at least 1, got %d", c.ChunkSize))
	}
	if c.HighWater < 1 {
		err = multierr.Append(err, errors.Errorf("high_water must be at least 1, got %d", c.HighWater))
	}
	if c.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("poll_interval must be positive"))
	}
	if c.QueueRetry < 0 || c.SettleDelay < 0 || c.GripPreDelay < 0 || c.ClawChangeDelay < 0 {
		err = multierr.Append(err, errors.New("delays cannot be negative"))
	}
	if c.SlowdownDistance < 0 {
		err = multierr.Append(err, errors.Errorf("slowdown_distance cannot be negative, got %v", c.SlowdownDistance))
	}
	if c.MinSpeed <= 0 || c.MinSpeed > 1 {
		err = multierr.Append(err, errors.Errorf("min_speed must be in (0, 1], got %v", c.MinSpeed))
	}
	if c.Correction.Span <= c.Correction.Threshold {
		err = multierr.Append(err, errors.New("correction span must be past its threshold"))
	}
	return err
}

// SpeedFactor is the speed scale for the waypoint at cur on a move from start
// to dst
func (c Config) SpeedFactor(start, cur, dst r3.Vec) float64 {
	d := r3.Norm(r3.Sub(start, cur))
	if e := r3.Norm(r3.Sub(cur, dst)); e < d {
		d = e
	}
	if d < c.SlowdownDistance {
		return d/c.SlowdownDistance*(1-c.MinSpeed) + c.MinSpeed
	}
	return 1
}
