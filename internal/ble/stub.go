//go:build !linux

package ble

import (
	"context"
	"errors"
)

// Handle is not available on non-Linux platforms.
type Handle struct{}

// Init returns an error on non-Linux platforms.
func Init(deviceID int, active bool) (*Handle, error) {
	return nil, errors.New("ble: not supported on this platform (requires Linux)")
}

// Scan is not implemented on non-Linux platforms.
func (h *Handle) Scan(ctx context.Context, onAdvertisement func(Advertisement)) error {
	return errors.New("ble: not supported")
}

// Stop is a no-op on non-Linux platforms.
func (h *Handle) Stop() error {
	return nil
}
