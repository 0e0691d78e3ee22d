//go:build rp2040

package main

import (
	"machine"

	"github.com/02alexander/robby-fischer/core"
)

// Magnet sensor inputs
var magnetPins = [2]machine.Pin{machine.ADC0, machine.ADC1}

// InitMagnets configures the two hall sensor channels. machine.ADC.Get
// returns samples scaled to 16 bits, matching core.ADCValue.
func InitMagnets() [2]core.AnalogInput {
	machine.InitADC()

	var inputs [2]core.AnalogInput
	for i, pin := range magnetPins {
		adc := machine.ADC{Pin: pin}
		adc.Configure(machine.ADCConfig{})
		inputs[i] = adc
	}
	return inputs
}
