package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// OutputPin is a configured digital output
type OutputPin interface {
	// Set drives the pin high (true) or low (false)
	Set(high bool)
}

// InputPin is a configured digital input
type InputPin interface {
	// Get reads the current pin level
	Get() bool
}

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) (OutputPin, error)

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) (InputPin, error)
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
