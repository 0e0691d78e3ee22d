package serial

import (
	"io"

	"github.com/pkg/errors"
	bugst "go.bug.st/serial"
)

// BugstPort wraps go.bug.st/serial, which reports a read timeout as (0, nil)
type BugstPort struct {
	port bugst.Port
}

func openBugst(cfg *Config) (Port, error) {
	port, err := bugst.Open(cfg.Device, &bugst.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, errors.Wrap(err, "failed to set read timeout")
		}
	}
	return newBugstPort(port), nil
}

func newBugstPort(port bugst.Port) *BugstPort {
	return &BugstPort{port: port}
}

// Read reads data from the serial port
func (p *BugstPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// Write writes data to the serial port
func (p *BugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *BugstPort) Close() error {
	return p.port.Close()
}

// Flush waits until written data has been transmitted
func (p *BugstPort) Flush() error {
	return p.port.Drain()
}

// DiscardInput drops received bytes nobody has read yet
func (p *BugstPort) DiscardInput() error {
	return p.port.ResetInputBuffer()
}
