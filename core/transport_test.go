package core

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/02alexander/robby-fischer/protocol"
)

// mockDevice is a USB endpoint whose host side is driven by the test
type mockDevice struct {
	mu       sync.Mutex
	in       bytes.Buffer
	out      bytes.Buffer
	busy     int // number of upcoming writes that accept nothing
	maxWrite int
}

func (d *mockDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.in.Len() == 0 {
		return 0, nil
	}
	return d.in.Read(p)
}

func (d *mockDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy > 0 {
		d.busy--
		return 0, nil
	}
	if d.maxWrite > 0 && len(p) > d.maxWrite {
		p = p[:d.maxWrite]
	}
	return d.out.Write(p)
}

func (d *mockDevice) feed(s string) {
	d.mu.Lock()
	d.in.WriteString(s)
	d.mu.Unlock()
}

func (d *mockDevice) written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.String()
}

func TestTransportReceive(t *testing.T) {
	dev := &mockDevice{}
	tr := NewTransport(dev)

	if tr.Available() {
		t.Fatal("Expected empty transport")
	}

	dev.feed("qs\npos\n")
	tr.Interrupt()
	if tr.Buffered() != 7 {
		t.Fatalf("Expected 7 buffered bytes, got %d", tr.Buffered())
	}

	// Consume only the first line
	var first []byte
	tr.Read(func(data []byte) int {
		i := bytes.IndexByte(data, '\n')
		first = append(first, data[:i+1]...)
		return i + 1
	})
	if string(first) != "qs\n" {
		t.Errorf("Expected first line, got %q", first)
	}
	if tr.Buffered() != 4 {
		t.Errorf("Expected remainder compacted to 4 bytes, got %d", tr.Buffered())
	}

	buf := make([]byte, 16)
	n := tr.ReadInto(buf)
	if string(buf[:n]) != "pos\n" {
		t.Errorf("Expected second line, got %q", buf[:n])
	}
	if tr.ReadInto(buf) != 0 {
		t.Error("Expected ReadInto on empty buffer to return 0")
	}
}

func TestTransportHandlerOverconsume(t *testing.T) {
	dev := &mockDevice{}
	tr := NewTransport(dev)
	dev.feed("abc")
	tr.Interrupt()

	tr.Read(func(data []byte) int { return 100 })
	if tr.Buffered() != 0 {
		t.Errorf("Expected consumption clamped to fill, got %d left", tr.Buffered())
	}
}

func TestTransportDropsWhenFull(t *testing.T) {
	dev := &mockDevice{}
	tr := NewTransport(dev)

	dev.feed(string(bytes.Repeat([]byte{'x'}, RxBufferSize)))
	tr.Interrupt()
	if tr.Buffered() != RxBufferSize {
		t.Fatalf("Expected full buffer, got %d", tr.Buffered())
	}

	dev.feed("overflow")
	tr.Interrupt()
	if tr.Dropped() != uint32(len("overflow")) {
		t.Errorf("Expected 8 dropped bytes, got %d", tr.Dropped())
	}
	if tr.Buffered() != RxBufferSize {
		t.Errorf("Expected buffered bytes untouched, got %d", tr.Buffered())
	}
}

func TestTransportWaitByte(t *testing.T) {
	dev := &mockDevice{}
	tr := NewTransport(dev)

	done := make(chan byte)
	go func() { done <- tr.WaitByte() }()

	time.Sleep(10 * time.Millisecond)
	dev.feed("z")
	tr.Interrupt()

	select {
	case b := <-done:
		if b != 'z' {
			t.Errorf("Expected 'z', got %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitByte did not return")
	}
}

func TestTransportWriteRetriesAfterInterrupt(t *testing.T) {
	dev := &mockDevice{busy: 1, maxWrite: 4}
	tr := NewTransport(dev)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tr.Interrupt()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	tr.WriteMessage(protocol.PositionReport{Bottom: 45, Top: 90, Rail: 0.25})
	close(stop)
	wg.Wait()

	if got := dev.written(); got != "pos 45 90 0.25\r\n" {
		t.Errorf("Unexpected output %q", got)
	}
}
