//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// criticalSection stands in for masking interrupts so that simulated
// interrupt handlers running on other goroutines stay serialized.
var criticalSection sync.Mutex

// disableInterrupts enters the critical section
func disableInterrupts() State {
	criticalSection.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	criticalSection.Unlock()
}
