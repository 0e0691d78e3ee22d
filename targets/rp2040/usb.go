//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication.
// On RP2040 machine.Serial is USB CDC-ACM with descriptors set by the runtime.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbDevice adapts the USB CDC endpoint to core.Device. Neither method blocks.
type usbDevice struct{}

// Read drains whatever the endpoint has buffered into p
func (usbDevice) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write queues p on the endpoint
func (usbDevice) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}
