// Package tilt decodes Tilt hydrometer iBeacon advertisements.
package tilt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

var (
	ErrInvalidData = errors.New("invalid advertisement data")
	ErrNotTilt     = errors.New("not a tilt advertisement")
)

// iBeacon manufacturer data layout:
// 4c 00 | 02 15 | uuid (16) | major (2, BE) | minor (2, BE) | tx power (1)
const (
	appleCompanyID  = 0x004c
	ibeaconType     = 0x02
	ibeaconLength   = 0x15
	manufacturerLen = 25
)

// Colours maps a Tilt colour to its beacon UUID (lower-case hex, no dashes).
var Colours = map[string]string{
	"red":    "a495bb10c5b14b44b5121370f02d74de",
	"green":  "a495bb20c5b14b44b5121370f02d74de",
	"black":  "a495bb30c5b14b44b5121370f02d74de",
	"purple": "a495bb40c5b14b44b5121370f02d74de",
	"orange": "a495bb50c5b14b44b5121370f02d74de",
	"blue":   "a495bb60c5b14b44b5121370f02d74de",
	"yellow": "a495bb70c5b14b44b5121370f02d74de",
	"pink":   "a495bb80c5b14b44b5121370f02d74de",
}

// Beacon is a decoded Tilt advertisement.
type Beacon struct {
	UUID    string
	Colour  string
	Reading ferment.Reading
	TxPower int8
}

// String implements fmt.Stringer.
func (b Beacon) String() string {
	return fmt.Sprintf("%s: %.1f°C SG %.3f", b.Colour, b.Reading.TemperatureC, b.Reading.SpecificGravity)
}

// ColourNames returns the known colours, sorted.
func ColourNames() []string {
	names := make([]string, 0, len(Colours))
	for name := range Colours {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveUUID accepts a colour name or a UUID (with or without dashes) and
// returns the normalized UUID.
func ResolveUUID(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if uuid, ok := Colours[v]; ok {
		return uuid, nil
	}
	uuid := strings.ReplaceAll(v, "-", "")
	if b, err := hex.DecodeString(uuid); err != nil || len(b) != 16 {
		return "", fmt.Errorf("%q is neither a tilt colour (%s) nor a 128-bit UUID",
			v, strings.Join(ColourNames(), ", "))
	}
	return uuid, nil
}

// ColourOf returns the colour for a UUID, or "" for a non-Tilt UUID.
func ColourOf(uuid string) string {
	for colour, u := range Colours {
		if u == uuid {
			return colour
		}
	}
	return ""
}

// Decode parses iBeacon manufacturer data. Major carries the temperature in
// °F and minor the specific gravity × 1000.
func Decode(data []byte, at time.Time) (Beacon, error) {
	var b Beacon

	if len(data) != manufacturerLen {
		return b, errors.Wrapf(ErrInvalidData, "unexpected manufacturer data length %d, want %d",
			len(data), manufacturerLen)
	}
	if binary.LittleEndian.Uint16(data[0:2]) != appleCompanyID {
		return b, errors.Wrapf(ErrNotTilt, "company id %#04x", binary.LittleEndian.Uint16(data[0:2]))
	}
	if data[2] != ibeaconType || data[3] != ibeaconLength {
		return b, errors.Wrapf(ErrNotTilt, "not an iBeacon frame (%#02x %#02x)", data[2], data[3])
	}

	b.UUID = hex.EncodeToString(data[4:20])
	b.Colour = ColourOf(b.UUID)
	if b.Colour == "" {
		return b, errors.Wrapf(ErrNotTilt, "unknown beacon uuid %s", b.UUID)
	}

	major := binary.BigEndian.Uint16(data[20:22])
	minor := binary.BigEndian.Uint16(data[22:24])
	b.TxPower = int8(data[24])

	if minor == 0 {
		return b, errors.Wrapf(ErrInvalidData, "zero gravity from %s tilt", b.Colour)
	}

	b.Reading = ferment.Reading{
		TemperatureC:    FahrenheitToCelsius(float64(major)),
		SpecificGravity: float64(minor) / 1000,
		ObservedAt:      at,
	}
	return b, nil
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
