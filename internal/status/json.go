package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Session       string       `json:"session"`
	BaselineSG    *float64     `json:"baseline_sg,omitempty"`
	LastReading   *ReadingJSON `json:"last_reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	PendingRetry  int          `json:"pending_retry"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the latest reading.
type ReadingJSON struct {
	TemperatureC    float64 `json:"temperature_c"`
	SpecificGravity float64 `json:"specific_gravity"`
	ObservedAt      string  `json:"observed_at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Readings        int `json:"readings"`
	DroppedReadings int `json:"dropped_readings"`
	Presses         int `json:"presses"`
	StoreErrors     int `json:"store_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Colour      string `json:"colour"`
	UUID        string `json:"uuid"`
	Store       string `json:"store"`
	Broker      string `json:"broker"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	FlushMs     int64  `json:"flush_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	sess := string(snap.Session)
	if sess == "" {
		sess = "UNKNOWN"
	}

	inner := StatusInner{
		Session:       sess,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings:        snap.Counts.Readings,
			DroppedReadings: snap.Counts.DroppedReading,
			Presses:         snap.Counts.Presses,
			StoreErrors:     snap.Counts.StoreErrors,
		},
		PendingRetry: snap.PendingRetry,
		Config: ConfigJSON{
			Colour:      snap.Config.Colour,
			UUID:        snap.Config.UUID,
			Store:       snap.Config.Store,
			Broker:      snap.Config.Broker,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			FlushMs:     snap.Config.FlushMs,
		},
	}
	if snap.HasBaseline {
		b := snap.Baseline
		inner.BaselineSG = &b
	}
	if r := snap.LastReading; r != nil {
		inner.LastReading = &ReadingJSON{
			TemperatureC:    r.TemperatureC,
			SpecificGravity: r.SpecificGravity,
			ObservedAt:      r.ObservedAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the indented JSON status for terminal output (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
