//go:build !tinygo

package core

import "sync/atomic"

// getSystemTicks returns the current system ticks (regular Go implementation)
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// setSystemTicks sets the system ticks (regular Go implementation)
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// delayMicros advances simulated time instead of sleeping
func delayMicros(us uint32) {
	atomic.AddUint32(&systemTicks, us)
}
