package core

// The controller timer counts microseconds in 32 bits and wraps after about
// 71 minutes; all comparisons use wrapping subtraction.
const (
	TimerFreq = 1000000 // 1MHz microsecond timer
)

var systemTicks uint32

// GetTime returns the current system time in microseconds
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// Elapsed returns the wrapping difference now - since
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Delay blocks for us microseconds. On the firmware it sleeps; under the
// regular Go toolchain it only advances the system time.
func Delay(us uint32) {
	delayMicros(us)
}
