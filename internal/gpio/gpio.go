// Package gpio provides the button input and LED output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// Press is a single debounced rising edge on the button line.
type Press struct {
	Time time.Time
	// Err is set when the driver reported a problem alongside the edge
	// (for example edges lost from the kernel buffer).
	Err error
}

// Button delivers debounced presses of the operator button.
type Button interface {
	// Presses returns the channel presses are delivered on.
	// The channel is never closed; stop reading after Close.
	Presses() <-chan Press

	// Close releases the input line.
	Close() error
}

// Output is a single digital output line.
type Output interface {
	// SetValue drives the line: 0 = low, anything else = high.
	SetValue(v int) error

	// Value returns the currently driven value (0 or 1).
	Value() (int, error)

	// Close releases the output line.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinButton = 17
	DefaultPinLED    = 27
)

// pressBuffer is the number of presses queued before further edges are dropped.
const pressBuffer = 8
