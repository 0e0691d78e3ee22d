package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/kinematics"
	"github.com/02alexander/robby-fischer/host/serial"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Serial.Device, test.ShouldEqual, DefaultDevice)
	test.That(t, cfg.Arm.Kinematics(), test.ShouldResemble, kinematics.DefaultArm())
	test.That(t, cfg.Arm.TranslationOffset.X, test.ShouldAlmostEqual, -kinematics.BoardToArm.X)
	test.That(t, cfg.Motion.HighWater, test.ShouldEqual, 15)
	test.That(t, cfg.Game.RecalibrateEvery, test.ShouldEqual, 10)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"serial": {"device": "/dev/ttyACM1", "driver": "bugst", "read_timeout": "250ms"},
		"arm": {"translation_offset": {"x": -0.14, "y": -0.02, "z": -0.03}},
		"motion": {"high_water": 10, "correction": {"gain_x": 0}},
		"calibration": {"max_attempts": 50},
		"game": {"home_pose": {"x": 0.1, "y": 0.5, "z": 0.2}, "skip_button": true},
		"engine": {"path": "/usr/games/stockfish", "args": ["--threads", "2"], "move_time": 1500000000}
	}`))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Serial.Device, test.ShouldEqual, "/dev/ttyACM1")
	test.That(t, cfg.Serial.Driver, test.ShouldEqual, serial.DriverBugst)
	test.That(t, cfg.Serial.ReadTimeout, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, cfg.Serial.Baud, test.ShouldEqual, 115200)

	test.That(t, cfg.Arm.TranslationOffset, test.ShouldResemble, r3.Vec{X: -0.14, Y: -0.02, Z: -0.03})
	test.That(t, cfg.Arm.BottomLength, test.ShouldEqual, kinematics.DefaultBottomLength)

	test.That(t, cfg.Motion.HighWater, test.ShouldEqual, 10)
	test.That(t, cfg.Motion.ChunkSize, test.ShouldEqual, 20)
	test.That(t, cfg.Motion.Correction.GainX, test.ShouldEqual, 0.0)
	test.That(t, cfg.Motion.Correction.GainZ, test.ShouldEqual, 0.002)

	test.That(t, cfg.Calibration.MaxAttempts, test.ShouldEqual, 50)
	test.That(t, cfg.Game.HomePose, test.ShouldResemble, r3.Vec{X: 0.1, Y: 0.5, Z: 0.2})
	test.That(t, cfg.Game.SkipButton, test.ShouldBeTrue)
	test.That(t, cfg.Engine.Args, test.ShouldResemble, []string{"--threads", "2"})
	test.That(t, cfg.Engine.MoveTime, test.ShouldEqual, 1500*time.Millisecond)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"motion": {"hihg_water": 10}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "hihg_water")
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte(`{
		"serial": {"driver": "usb"},
		"motion": {"chunk_size": 0},
		"game": {"button_poll": "0s"}
	}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown driver "usb"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "chunk_size")
	test.That(t, err.Error(), test.ShouldContainSubstring, "button_poll")

	_, err = Parse([]byte(`{"motion": {"poll_interval": "soon"}}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Parse([]byte(`{"motion": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to parse JSON")
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())

	path := filepath.Join(t.TempDir(), "robby.json")
	test.That(t, os.WriteFile(path, []byte(`{"motion": {"points_per_meter": 200}}`), 0o600), test.ShouldBeNil)
	cfg, err = Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Motion.PointsPerMeter, test.ShouldEqual, 200.0)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to read config")
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Motion.SettleDelay = 450 * time.Millisecond
	data, err := json.Marshal(cfg)
	test.That(t, err, test.ShouldBeNil)

	back, err := Parse(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, cfg)
}
