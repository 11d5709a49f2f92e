// Package ble scans for Bluetooth LE advertisements through the HCI device.
package ble

import (
	"context"
	"errors"
	"fmt"
)

// Advertisement is the subset of an LE advertisement the daemon uses.
type Advertisement struct {
	Addr             string
	LocalName        string
	RSSI             int
	Connectable      bool
	Services         []string
	ManufacturerData []byte
}

// Scanner delivers advertisements until its context is done.
type Scanner interface {
	// Scan blocks, calling onAdvertisement for every advertisement received
	// (duplicates included) until ctx is cancelled. Cancellation is not an error.
	Scan(ctx context.Context, onAdvertisement func(Advertisement)) error

	// Stop releases the HCI device.
	Stop() error
}

// swallowDone hides the errors caused by our own cancellation or deadline.
func swallowDone(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("scan: %w", err)
}
