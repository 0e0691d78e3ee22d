//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"github.com/02alexander/robby-fischer/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareTime returns the low 32 bits of the 1MHz microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// High, low, high again to detect a carry between the two reads
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime copies hardware time into the core timer.
// Called at the top of every main loop pass.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}

// delayMicros busy waits on the hardware counter. Homing uses it between
// step toggles, where sleeping would hand the CPU to the USB goroutine for
// too long.
func delayMicros(us uint32) {
	start := GetHardwareTime()
	for core.Elapsed(GetHardwareTime(), start) < us {
	}
	UpdateSystemTime()
}
