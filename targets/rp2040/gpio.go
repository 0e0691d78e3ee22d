//go:build rp2040

package main

import (
	"machine"

	"github.com/02alexander/robby-fischer/core"
)

// RPGPIODriver implements core.GPIODriver on the RP2040 pads
type RPGPIODriver struct {
	// Track configured pins to prevent conflicts
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a push-pull output driven low
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) (core.OutputPin, error) {
	if p, exists := d.configuredPins[pin]; exists {
		return p, nil
	}
	machinePin := d.pinNumberToMachinePin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machinePin.Low()
	d.configuredPins[pin] = machinePin
	return machinePin, nil
}

// ConfigureInputPullUp configures a pin as an input with the pull-up enabled
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) (core.InputPin, error) {
	if p, exists := d.configuredPins[pin]; exists {
		return p, nil
	}
	machinePin := d.pinNumberToMachinePin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	d.configuredPins[pin] = machinePin
	return machinePin, nil
}

// pinNumberToMachinePin maps GPIO numbers directly, GPIO0 = 0 and so on
func (d *RPGPIODriver) pinNumberToMachinePin(pin core.GPIOPin) machine.Pin {
	return machine.Pin(pin)
}
