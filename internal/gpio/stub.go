//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chip string, pin int, debounce time.Duration) (*RealButton, error) {
	return nil, errUnsupported
}

// Presses returns a channel that never delivers.
func (b *RealButton) Presses() <-chan Press {
	return nil
}

// Close is a no-op on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	return nil, errUnsupported
}

// SetValue is not implemented on non-Linux platforms.
func (o *RealOutput) SetValue(v int) error {
	return errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (o *RealOutput) Value() (int, error) {
	return 0, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}
