package core

import (
	"runtime"

	"github.com/02alexander/robby-fischer/protocol"
	"go.uber.org/atomic"
)

// RxBufferSize is the receive buffer capacity in bytes
const RxBufferSize = 4096

// Device is the raw byte channel underneath the transport (USB CDC on the
// target). Read and Write must not block.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Transport moves bytes between the interrupt handler and the main loop.
//
// Interrupt is the only writer of the fill level and the only code that sets
// the write-ready flag; the main loop is the only reader of the receive
// buffer and the only writer to the device. The two sides share nothing but
// the two atomics.
type Transport struct {
	dev Device

	rx       [RxBufferSize]byte
	fill     atomic.Uint32
	writable atomic.Bool
	reading  atomic.Bool

	discard [64]byte
	dropped atomic.Uint32
}

// NewTransport creates a transport over dev
func NewTransport(dev Device) *Transport {
	t := &Transport{dev: dev}
	t.writable.Store(true)
	return t
}

// Interrupt services the device: it re-arms writing and pulls whatever the
// device has into the free tail of the receive buffer. Input that arrives
// while the buffer is full is read and thrown away.
func (t *Transport) Interrupt() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t.writable.Store(true)

	index := t.fill.Load()
	if int(index) >= len(t.rx) {
		n, _ := t.dev.Read(t.discard[:])
		if n > 0 {
			t.dropped.Add(uint32(n))
		}
		return
	}

	n, err := t.dev.Read(t.rx[index:])
	if err != nil || n <= 0 {
		return
	}
	t.fill.Store(index + uint32(n))
}

// Available reports whether any received bytes are waiting
func (t *Transport) Available() bool {
	return t.fill.Load() > 0
}

// Buffered returns the number of received bytes waiting
func (t *Transport) Buffered() int {
	return int(t.fill.Load())
}

// Dropped returns the number of bytes discarded because the buffer was full
func (t *Transport) Dropped() uint32 {
	return t.dropped.Load()
}

// Writable reports whether the last write attempt succeeded
func (t *Transport) Writable() bool {
	return t.writable.Load()
}

// Read waits until data is available and hands the buffered bytes to
// handler, which returns how many it consumed. Read must not be re-entered.
func (t *Transport) Read(handler func(data []byte) int) {
	if t.reading.Swap(true) {
		panic("transport: recursive read")
	}
	defer t.reading.Store(false)

	for t.fill.Load() == 0 {
		spinLoop()
	}

	state := disableInterrupts()
	index := t.fill.Load()
	consumed := handler(t.rx[:index])
	if consumed < 0 {
		consumed = 0
	}
	if consumed > int(index) {
		consumed = int(index)
	}
	copy(t.rx[:], t.rx[consumed:index])
	t.fill.Store(index - uint32(consumed))
	restoreInterrupts(state)
}

// ReadInto copies up to len(p) buffered bytes into p without waiting
func (t *Transport) ReadInto(p []byte) int {
	if !t.Available() || len(p) == 0 {
		return 0
	}
	var n int
	t.Read(func(data []byte) int {
		n = copy(p, data)
		return n
	})
	return n
}

// WaitByte waits for and returns a single byte
func (t *Transport) WaitByte() byte {
	var b byte
	t.Read(func(data []byte) int {
		b = data[0]
		return 1
	})
	return b
}

// Write sends all of data, waiting whenever the device reports busy until
// the next interrupt re-arms it.
func (t *Transport) Write(data []byte) {
	for len(data) > 0 {
		for !t.writable.Load() {
			spinLoop()
		}

		state := disableInterrupts()
		n, err := t.dev.Write(data)
		if err != nil || n <= 0 {
			t.writable.Store(false)
			n = 0
		}
		restoreInterrupts(state)

		data = data[n:]
	}
}

// WriteMessage encodes m and writes it as one line
func (t *Transport) WriteMessage(m protocol.Message) {
	var buf [64]byte
	line := protocol.Append(buf[:0], m)
	line = append(line, '\r', '\n')
	t.Write(line)
}

// spinLoop yields while busy waiting so the interrupt goroutine can run
func spinLoop() {
	runtime.Gosched()
}
