// Package mqtt mirrors measurements and session events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

// Topics.
const (
	TopicMeasurements = "fermenter/tilt/measurements"
	TopicSession      = "fermenter/tilt/session"
	TopicSystem       = "fermenter/tilt/system"
)

// Publisher publishes daemon output to MQTT.
type Publisher interface {
	// PublishMeasurements sends one batch of derived metrics.
	// Returns error if publishing fails (should not crash the process).
	PublishMeasurements(m Measurements) error

	// PublishSession sends a session start/stop.
	PublishSession(s SessionEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Measurements is one batch of metrics from a single reading.
type Measurements struct {
	Device     string
	ObservedAt time.Time
	Metrics    []ferment.Metric
}

// SessionEvent is a session transition together with its baseline.
type SessionEvent struct {
	Event       ferment.Event
	Baseline    float64
	HasBaseline bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// MeasurementsPayload is the MQTT payload for a measurement batch.
type MeasurementsPayload struct {
	Tilt TiltPayload `json:"tilt"`
}

// TiltPayload contains the measurement details.
type TiltPayload struct {
	Timestamp string          `json:"timestamp"`
	Device    string          `json:"device"`
	Metrics   []MetricPayload `json:"metrics"`
}

// MetricPayload follows the measurement sink schema.
type MetricPayload struct {
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}

// FormatMeasurements creates the JSON payload for a measurement batch.
func FormatMeasurements(m Measurements) ([]byte, error) {
	metrics := make([]MetricPayload, 0, len(m.Metrics))
	for _, metric := range m.Metrics {
		metrics = append(metrics, MetricPayload{
			Variable: string(metric.Name),
			Value:    metric.Value,
			Unit:     metric.Unit,
		})
	}
	return json.Marshal(MeasurementsPayload{
		Tilt: TiltPayload{
			Timestamp: m.ObservedAt.UTC().Format(time.RFC3339),
			Device:    m.Device,
			Metrics:   metrics,
		},
	})
}

// SessionPayload is the MQTT payload for a session transition.
type SessionPayload struct {
	Session SessionPayloadInner `json:"session"`
}

// SessionPayloadInner contains the session transition details.
type SessionPayloadInner struct {
	Timestamp  string   `json:"timestamp"`
	Event      string   `json:"event"`
	Title      string   `json:"title"`
	BaselineSG *float64 `json:"baseline_sg,omitempty"`
}

// FormatSession creates the JSON payload for a session transition.
func FormatSession(s SessionEvent) ([]byte, error) {
	inner := SessionPayloadInner{
		Timestamp: s.Event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(s.Event.Kind),
		Title:     s.Event.Kind.Title(),
	}
	if s.HasBaseline {
		b := s.Baseline
		inner.BaselineSG = &b
	}
	return json.Marshal(SessionPayload{Session: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
