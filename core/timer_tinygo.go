//go:build tinygo

package core

import (
	"sync/atomic"
	"time"
)

// getSystemTicks returns the current system ticks
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// setSystemTicks sets the system ticks
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// delayMicros sleeps; the main loop refreshes systemTicks from hardware
func delayMicros(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}
