//go:build linux

package ble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/rs/zerolog/log"
)

type scanType uint8

const (
	scanTypePassive scanType = iota
	scanTypeActive
)

func (s scanType) String() string {
	if s == scanTypeActive {
		return "Active"
	}
	return "Passive"
}

// Handle is an initialized HCI device.
type Handle struct {
	dev *linux.Device
}

// Init opens HCI device deviceID. Tilt beacons are non-connectable iBeacons,
// so a passive scan is enough; active requests scan responses too (used for
// discovery, where local names are useful).
func Init(deviceID int, active bool) (*Handle, error) {
	st := scanTypePassive
	if active {
		st = scanTypeActive
	}

	log.Debug().
		Stringer("ScanType", st).
		Int("DeviceID", deviceID).
		Msg("Initializing Bluetooth device")

	dev, err := linux.NewDevice(
		ble.OptDeviceID(deviceID),
		ble.OptScanParams(cmd.LESetScanParameters{
			LEScanType:           uint8(st), // 0x00: passive, 0x01: active
			LEScanInterval:       0x0010,    // 0x0004 - 0x4000; N * 0.625msec
			LEScanWindow:         0x0010,    // 0x0004 - 0x4000; N * 0.625msec
			OwnAddressType:       0x00,      // 0x00: public, 0x01: random
			ScanningFilterPolicy: 0x00,      // 0x00: accept all
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
	}

	return &Handle{dev: dev}, nil
}

// Scan runs an LE scan with duplicates allowed; Tilts re-broadcast the same
// frame with fresh values, so filtering duplicates would hide updates.
func (h *Handle) Scan(ctx context.Context, onAdvertisement func(Advertisement)) error {
	err := h.dev.Scan(ctx, true, func(a ble.Advertisement) {
		// the BLE lib could send an advertisement even after Scan() returns.
		select {
		case <-ctx.Done():
			return
		default:
		}
		onAdvertisement(convert(a))
	})
	return swallowDone(err)
}

// Stop closes the HCI device.
func (h *Handle) Stop() error {
	return h.dev.Stop()
}

func convert(a ble.Advertisement) Advertisement {
	services := make([]string, 0, len(a.Services()))
	for _, uuid := range a.Services() {
		services = append(services, uuid.String())
	}
	return Advertisement{
		Addr:             a.Addr().String(),
		LocalName:        a.LocalName(),
		RSSI:             a.RSSI(),
		Connectable:      a.Connectable(),
		Services:         services,
		ManufacturerData: a.ManufacturerData(),
	}
}
