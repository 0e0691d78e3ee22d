//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"
)

// ServoPin drives the gripper servo
const ServoPin = machine.GPIO19

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type.
// It is the same method set servo.PWM requires.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// pwmSlice returns the PWM slice wired to pin.
// GPIO N belongs to slice (N >> 1) & 0x7, so GPIO19 is on PWM1 channel B.
func pwmSlice(pin machine.Pin) pwmPeripheral {
	switch (uint8(pin) >> 1) & 0x7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// NewGripperServo configures the 50Hz servo output
func NewGripperServo() (servo.Servo, error) {
	return servo.New(pwmSlice(ServoPin), ServoPin)
}
