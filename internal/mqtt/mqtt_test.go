package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

func sampleMeasurements() Measurements {
	return Measurements{
		Device:     "red",
		ObservedAt: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Metrics: []ferment.Metric{
			{Name: ferment.MetricTemperature, Value: 19.5, Unit: ferment.UnitCelsius},
			{Name: ferment.MetricSpecificGravity, Value: 1.012, Unit: ferment.UnitDimensionless},
		},
	}
}

func TestFormatMeasurements(t *testing.T) {
	payload, err := FormatMeasurements(sampleMeasurements())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed MeasurementsPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Tilt.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Tilt.Timestamp)
	}
	if parsed.Tilt.Device != "red" {
		t.Errorf("unexpected device: %s", parsed.Tilt.Device)
	}
	if len(parsed.Tilt.Metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(parsed.Tilt.Metrics))
	}
	if parsed.Tilt.Metrics[0].Variable != "temperature" || parsed.Tilt.Metrics[0].Unit != "°C" {
		t.Errorf("unexpected first metric: %+v", parsed.Tilt.Metrics[0])
	}
}

func TestFormatMeasurementsExactJSON(t *testing.T) {
	payload, err := FormatMeasurements(sampleMeasurements())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"tilt":{"timestamp":"2026-02-02T22:18:12Z","device":"red","metrics":[` +
		`{"variable":"temperature","value":19.5,"unit":"°C"},` +
		`{"variable":"specific_gravity","value":1.012,"unit":"-"}]}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatMeasurementsEmpty(t *testing.T) {
	payload, err := FormatMeasurements(Measurements{Device: "red", ObservedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed MeasurementsPayload
	json.Unmarshal(payload, &parsed)
	if parsed.Tilt.Metrics == nil || len(parsed.Tilt.Metrics) != 0 {
		t.Errorf("expected empty metrics array, got %s", payload)
	}
}

func TestFormatSession(t *testing.T) {
	tests := []struct {
		name string
		in   SessionEvent
		want string
	}{
		{
			name: "start",
			in: SessionEvent{
				Event:       ferment.Event{Kind: ferment.EventStart, Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)},
				Baseline:    1.05,
				HasBaseline: true,
			},
			want: `{"session":{"timestamp":"2026-02-03T10:30:45Z","event":"START","title":"fermentation_start","baseline_sg":1.05}}`,
		},
		{
			name: "stop",
			in: SessionEvent{
				Event: ferment.Event{Kind: ferment.EventStop, Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)},
			},
			want: `{"session":{"timestamp":"2026-02-03T10:30:45Z","event":"STOP","title":"fermentation_stop"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatSession(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
			}
		})
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "OFFLINE",
	})
	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"OFFLINE"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should be returned as-is, got %s", payload)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 11, 30, 45, 0, loc),
		Event:     "HEARTBEAT",
	})

	var parsed SystemPayload
	json.Unmarshal(payload, &parsed)
	if parsed.System.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	want := map[string]string{
		"fermenter/tilt/measurements": TopicMeasurements,
		"fermenter/tilt/session":      TopicSession,
		"fermenter/tilt/system":       TopicSystem,
	}
	for expected, got := range want {
		if got != expected {
			t.Errorf("unexpected topic: got %s, want %s", got, expected)
		}
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishMeasurements(sampleMeasurements()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := SessionEvent{Event: ferment.Event{Kind: ferment.EventStart, Timestamp: time.Now()}, Baseline: 1.05, HasBaseline: true}
	if err := f.PublishSession(start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Measurements) != 1 {
		t.Errorf("expected 1 measurement batch, got %d", len(f.Measurements))
	}
	if len(f.Sessions) != 1 || f.Sessions[0].Event.Kind != ferment.EventStart {
		t.Errorf("unexpected sessions: %+v", f.Sessions)
	}
	if len(f.Payloads) != 2 {
		t.Errorf("expected 2 payloads, got %d", len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || len(f.SystemPayloads) != 1 {
		t.Errorf("expected 1 system event, got %d", len(f.SystemEvents))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated system error")

	if err := f.PublishMeasurements(sampleMeasurements()); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishSession(SessionEvent{}); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected error")
	}

	if len(f.Measurements) != 0 || len(f.Sessions) != 0 || len(f.SystemEvents) != 0 {
		t.Error("nothing should be recorded on error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishMeasurements(sampleMeasurements())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("error")

	f.Reset()

	if len(f.Measurements) != 0 || len(f.Payloads) != 0 {
		t.Error("measurements should be cleared")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("system events should be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("flags should be reset")
	}
	if f.PublishError != nil {
		t.Error("error should be cleared")
	}
}
