// Package ferment contains pure fermentation logic: session events, sensor
// readings and the metrics derived from them.
// This package has NO external dependencies (no GPIO, BLE, storage or clock).
// Time is always passed in as a time.Time value.
package ferment

import "time"

// EventKind distinguishes session start from session stop.
type EventKind string

const (
	EventStart EventKind = "START"
	EventStop  EventKind = "STOP"
)

// Title returns the string persisted in the event log for this kind.
func (k EventKind) Title() string {
	switch k {
	case EventStart:
		return "fermentation_start"
	case EventStop:
		return "fermentation_stop"
	default:
		return ""
	}
}

// KindFromTitle is the inverse of Title. Unknown titles return false.
func KindFromTitle(title string) (EventKind, bool) {
	switch title {
	case "fermentation_start":
		return EventStart, true
	case "fermentation_stop":
		return EventStop, true
	default:
		return "", false
	}
}

// Event is an immutable entry of the session event log.
type Event struct {
	Kind      EventKind
	Timestamp time.Time
}

// Reading is one decoded hydrometer observation.
type Reading struct {
	TemperatureC    float64
	SpecificGravity float64
	ObservedAt      time.Time
}

// MetricName identifies a derived measurement.
type MetricName string

const (
	MetricTemperature     MetricName = "temperature"
	MetricSpecificGravity MetricName = "specific_gravity"
	MetricAlcoholByVolume MetricName = "alcohol_by_volume"
	MetricAlcoholByMass   MetricName = "alcohol_by_mass"
)

// Units written alongside each metric.
const (
	UnitCelsius       = "°C"
	UnitDimensionless = "-"
	UnitVolumePercent = "vol.-%"
	UnitWeightPercent = "wt.-%"
)

// Metric is a single tagged measurement ready to be persisted.
type Metric struct {
	Name  MetricName
	Value float64
	Unit  string
}
