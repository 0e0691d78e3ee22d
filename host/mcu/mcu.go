// Package mcu is the host side of the serial link to the arm controller.
package mcu

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/02alexander/robby-fischer/host/serial"
	"github.com/02alexander/robby-fischer/protocol"
)

var (
	// ErrTimeout means no complete line arrived within the port read timeout
	ErrTimeout = errors.New("timed out waiting for controller")

	// ErrUnexpectedResponse means the controller answered with the wrong kind
	// of response
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Retryable reports whether a failed exchange can simply be repeated: the
// line timed out, was garbled, or answered a different question
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnexpectedResponse) || protocol.IsDecodeError(err)
}

// FaultError is returned when the controller reports that it halted
type FaultError struct {
	Code uint32
}

func (e *FaultError) Error() string {
	switch e.Code {
	case protocol.FaultPanic:
		return "controller fault: panic"
	case protocol.FaultHomingTimeout:
		return "controller fault: homing timeout"
	}
	return fmt.Sprintf("controller fault %d", e.Code)
}

// MCU represents the connection to the arm controller
type MCU struct {
	mu     sync.Mutex
	port   io.ReadWriter
	logger *zap.SugaredLogger

	// bytes of a line not yet terminated
	pending []byte
	buf     [256]byte
}

// New wraps an already open port
func New(port io.ReadWriter, logger *zap.SugaredLogger) *MCU {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MCU{port: port, logger: logger}
}

// Connect opens the serial port and drops any stale input
func Connect(cfg *serial.Config, logger *zap.SugaredLogger) (*MCU, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if d, ok := port.(serial.InputDiscarder); ok {
		if err := d.DiscardInput(); err != nil {
			logger.Warnw("could not discard stale input", "error", err)
		}
	}
	// Give the controller time to settle if it just enumerated
	time.Sleep(100 * time.Millisecond)
	return New(port, logger), nil
}

// Close closes the underlying port if it can be closed
func (m *MCU) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if f, ok := m.port.(interface{ Flush() error }); ok {
		err = multierr.Append(err, f.Flush())
	}
	if c, ok := m.port.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Send writes one command line
func (m *MCU) Send(cmd protocol.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(cmd)
}

// Receive reads and decodes one response line
func (m *MCU) Receive() (protocol.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receive()
}

// Request sends cmd and reads its reply. Replies to earlier requests that
// timed out are skipped.
func (m *MCU) Request(cmd protocol.Command) (protocol.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.send(cmd); err != nil {
		return nil, err
	}
	if !protocol.ExpectsReply(cmd) {
		return m.receive()
	}
	for {
		resp, err := m.receive()
		if err != nil || protocol.Answers(cmd, resp) {
			return resp, err
		}
		m.logger.Debugw("discarding stale reply", "request", cmd.Token(), "reply", protocol.Encode(resp))
	}
}

// Requester sends a command and returns the response to it
type Requester interface {
	Request(cmd protocol.Command) (protocol.Response, error)
}

// Query sends cmd and expects a response of type T
func Query[T protocol.Response](r Requester, cmd protocol.Command) (T, error) {
	var zero T
	resp, err := r.Request(cmd)
	if err != nil {
		return zero, err
	}
	v, ok := resp.(T)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedResponse, "%s answered with %q", cmd.Token(), protocol.Encode(resp))
	}
	return v, nil
}

func (m *MCU) send(cmd protocol.Command) error {
	line := protocol.Append(make([]byte, 0, 48), cmd)
	m.logger.Debugw("send", "line", string(line))
	line = append(line, '\n')
	if _, err := m.port.Write(line); err != nil {
		return errors.Wrapf(err, "error sending %s to controller", cmd.Token())
	}
	if f, ok := m.port.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, "error flushing serial port")
		}
	}
	return nil
}

func (m *MCU) receive() (protocol.Response, error) {
	for {
		line, err := m.readLine()
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		m.logger.Debugw("receive", "line", string(line))

		resp, err := protocol.DecodeResponse(string(line))
		if err != nil {
			return nil, errors.Wrapf(err, "undecodable line %q", line)
		}
		if f, ok := resp.(protocol.FaultReport); ok {
			m.logger.Errorw("controller halted", "code", f.Code)
			return nil, &FaultError{Code: f.Code}
		}
		return resp, nil
	}
}

// readLine returns the next newline terminated line. A read that times out
// keeps the partial line for the next call.
func (m *MCU) readLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(m.pending, '\n'); i >= 0 {
			line := append([]byte(nil), m.pending[:i]...)
			m.pending = append(m.pending[:0], m.pending[i+1:]...)
			return line, nil
		}
		n, err := m.port.Read(m.buf[:])
		m.pending = append(m.pending, m.buf[:n]...)
		if n > 0 {
			continue
		}
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrTimeout
		}
		return nil, errors.Wrap(err, "error reading from controller")
	}
}
