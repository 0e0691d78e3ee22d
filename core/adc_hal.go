package core

// ADCValue is the "raw" ADC reading as seen by the rest of the firmware.
// Convention here: 16-bit value, even if underlying hardware is 12 bits.
type ADCValue uint16

// ADCMax is the full-scale ADCValue
const ADCMax = 0xFFFF

// AnalogInput is a configured analog channel. machine.ADC satisfies it.
type AnalogInput interface {
	// Get performs a one-shot sample scaled to 16 bits
	Get() uint16
}

// Normalize converts a reading to the range [0, 1]
func Normalize(v ADCValue) float32 {
	return float32(v) / ADCMax
}

// readAnalog samples in, treating a missing channel as zero
func readAnalog(in AnalogInput) float32 {
	if in == nil {
		return 0
	}
	return Normalize(ADCValue(in.Get()))
}
