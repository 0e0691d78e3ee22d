// Package serial opens the USB serial link to the arm controller.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - go.bug.st/serial
// - The in-process simulator (host/sim)
//
// A read that times out returns (0, io.EOF).
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// InputDiscarder is implemented by ports that can drop stale input
type InputDiscarder interface {
	DiscardInput() error
}

// Driver names accepted in Config.Driver
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string `json:"device"`

	// Baud rate (USB CDC ignores it)
	Baud int `json:"baud"`

	// ReadTimeout bounds a single read
	ReadTimeout time.Duration `json:"read_timeout"`

	// Driver selects the implementation, DriverTarm when empty
	Driver string `json:"driver"`
}

// DefaultConfig returns the configuration of the reference setup
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: time.Second,
		Driver:      DriverTarm,
	}
}

// Open opens the port described by cfg with the selected driver
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, errors.New("no serial device given")
	}
	switch cfg.Driver {
	case "", DriverTarm:
		return openNative(cfg)
	case DriverBugst:
		return openBugst(cfg)
	default:
		return nil, errors.Errorf("unknown serial driver %q", cfg.Driver)
	}
}
