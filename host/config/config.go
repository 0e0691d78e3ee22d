// Package config loads the host configuration file.
//
// The file is JSON. Every section is optional and fields left out keep their
// defaults. Durations are written as strings such as "100ms".
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/board"
	"github.com/02alexander/robby-fischer/host/calibration"
	"github.com/02alexander/robby-fischer/host/kinematics"
	"github.com/02alexander/robby-fischer/host/motion"
	"github.com/02alexander/robby-fischer/host/serial"
)

// DefaultDevice is the controller's stable device path
const DefaultDevice = "/dev/serial/by-id/usb-alebe_herla_robby_fischer_1972-if00"

// Config is the complete host configuration
type Config struct {
	Serial      serial.Config      `json:"serial"`
	Arm         ArmConfig          `json:"arm"`
	Motion      motion.Config      `json:"motion"`
	Calibration calibration.Config `json:"calibration"`
	Game        board.GameConfig   `json:"game"`
	Engine      EngineConfig       `json:"engine"`
}

// ArmConfig describes the physical arm
type ArmConfig struct {
	BottomLength float64 `json:"bottom_length"`
	TopLength    float64 `json:"top_length"`
	// Added to kinematic positions to get board coordinates
	TranslationOffset r3.Vec `json:"translation_offset"`
}

// Kinematics returns the link model
func (a ArmConfig) Kinematics() kinematics.Arm {
	return kinematics.Arm{BottomLength: a.BottomLength, TopLength: a.TopLength}
}

// EngineConfig selects the UCI engine the play command starts
type EngineConfig struct {
	Path     string        `json:"path"`
	Args     []string      `json:"args"`
	MoveTime time.Duration `json:"move_time"`
}

// Default returns the configuration of the reference build
func Default() *Config {
	arm := kinematics.DefaultArm()
	return &Config{
		Serial: *serial.DefaultConfig(DefaultDevice),
		Arm: ArmConfig{
			BottomLength:      arm.BottomLength,
			TopLength:         arm.TopLength,
			TranslationOffset: r3.Scale(-1, kinematics.BoardToArm),
		},
		Motion:      motion.DefaultConfig(),
		Calibration: calibration.DefaultConfig(),
		Game:        board.DefaultGameConfig(),
		Engine: EngineConfig{
			Path:     "stockfish",
			MoveTime: time.Second,
		},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Parse decodes a JSON document over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var err error
	if c.Serial.Baud <= 0 {
		err = multierr.Append(err, errors.Errorf("serial: baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.ReadTimeout <= 0 {
		err = multierr.Append(err, errors.New("serial: read_timeout must be positive"))
	}
	switch c.Serial.Driver {
	case "", serial.DriverTarm, serial.DriverBugst:
	default:
		err = multierr.Append(err, errors.Errorf("serial: unknown driver %q", c.Serial.Driver))
	}
	if c.Arm.BottomLength <= 0 || c.Arm.TopLength <= 0 {
		err = multierr.Append(err, errors.New("arm: link lengths must be positive"))
	}
	if e := c.Motion.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "motion"))
	}
	if e := c.Calibration.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "calibration"))
	}
	if e := c.Game.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "game"))
	}
	if c.Engine.MoveTime <= 0 {
		err = multierr.Append(err, errors.New("engine: move_time must be positive"))
	}
	return err
}
