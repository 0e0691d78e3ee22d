// Package protocol implements the line-based text protocol spoken between the
// host and the arm controller.
//
// Every message is one newline-terminated ASCII line: a token followed by
// space-separated fields. Commands flow host to controller, responses flow
// controller to host. There is no framing, sequencing or checksum.
package protocol

// Version represents the firmware/protocol version
const Version = "0.1.0"

// Protocol constants
const (
	LineMax = 4096 // Maximum line length accepted by the controller

	QueueCapacity = 15 // Default motion queue capacity on the controller
)

// Fault codes carried by the fault response
const (
	FaultNone          uint32 = 0
	FaultPanic         uint32 = 1 // Unrecovered panic in the main loop
	FaultHomingTimeout uint32 = 2 // Limit switch never changed state
)
