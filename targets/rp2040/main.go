//go:build rp2040

package main

import (
	"machine"
	"time"

	"github.com/02alexander/robby-fischer/core"
	"github.com/02alexander/robby-fischer/protocol"
)

var (
	transport *core.Transport
	arm       *core.ArmController
	lines     = protocol.NewLineBuffer()
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	UpdateSystemTime()

	core.SetGPIODriver(NewRPGPIODriver())

	periph := core.Peripherals{
		Magnets: InitMagnets(),
		Delay:   delayMicros,
		Reboot:  machine.EnterBootloader,
	}
	if s, err := NewGripperServo(); err == nil {
		periph.Servo = s
	} else {
		println("servo:", err.Error())
	}

	var err error
	arm, err = core.NewArmController(core.DefaultArmConfig(), periph)
	if err != nil {
		// Nothing can run without the steppers
		for {
			println("arm:", err.Error())
			time.Sleep(time.Second)
		}
	}

	transport = core.NewTransport(usbDevice{})
	go usbReaderLoop()

	for {
		step()
	}
}

// step is one main loop pass. A panic halts the arm and reports the fault;
// the loop itself keeps running so the host can still query and reboot.
func step() {
	defer func() {
		if r := recover(); r != nil {
			lines.Reset()
			arm.Halt(protocol.FaultPanic)
			transport.WriteMessage(protocol.FaultReport{Code: protocol.FaultPanic})
		}
	}()

	UpdateSystemTime()
	arm.Run(core.GetTime())

	var chunk [64]byte
	n := transport.ReadInto(chunk[:])
	for _, b := range chunk[:n] {
		line, ok := lines.Push(b)
		if !ok {
			continue
		}
		// malformed and rejected lines have no effect beyond their reply
		resp, _ := arm.HandleLine(line)
		if resp != nil {
			transport.WriteMessage(resp)
		}
	}
}

// usbReaderLoop plays the part of the USB receive interrupt. It polls the
// endpoint and services the transport whenever bytes arrived or a write
// is waiting for the endpoint to drain.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 || !transport.Writable() {
			transport.Interrupt()
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}
