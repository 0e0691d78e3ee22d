package protocol

// LineBuffer assembles incoming bytes into newline-terminated lines.
// It holds at most LineMax bytes; a longer line is dropped whole.
type LineBuffer struct {
	buf       [LineMax]byte
	pos       int
	dropping  bool
	Overflows uint32 // Number of lines dropped for exceeding LineMax
}

// NewLineBuffer creates an empty LineBuffer
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Push adds one byte. When b completes a line, the line (without '\n' or a
// trailing '\r') is returned; the slice is only valid until the next Push.
func (l *LineBuffer) Push(b byte) ([]byte, bool) {
	if b == '\n' {
		if l.dropping {
			l.dropping = false
			l.pos = 0
			return nil, false
		}
		line := l.buf[:l.pos]
		l.pos = 0
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		return line, true
	}
	if l.dropping {
		return nil, false
	}
	if l.pos >= len(l.buf) {
		// Too long: discard everything up to the next terminator
		l.dropping = true
		l.pos = 0
		l.Overflows++
		return nil, false
	}
	l.buf[l.pos] = b
	l.pos++
	return nil, false
}

// Len returns the number of bytes of the pending partial line
func (l *LineBuffer) Len() int {
	return l.pos
}

// Reset clears the buffer
func (l *LineBuffer) Reset() {
	l.pos = 0
	l.dropping = false
}

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer and returns how much fit
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IndexByte returns the offset of the first c in the readable data, or -1
func (f *FifoBuffer) IndexByte(c byte) int {
	for i, p := 0, f.read; p != f.write; i, p = i+1, (p+1)%f.size {
		if f.buf[p] == c {
			return i
		}
	}
	return -1
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
