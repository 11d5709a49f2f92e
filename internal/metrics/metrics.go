// Package metrics exposes daemon counters in the Prometheus text format.
//
// There is no HTTP listener. The registry is written to a file for the
// node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/session"
)

const namespace = "tilt_fermenter"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	readings     prometheus.Counter
	dropped      prometheus.Counter
	presses      *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	retryDepth   prometheus.Gauge
	sessionState *prometheus.GaugeVec
	measurement  *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Tilt readings accepted by the dispatch loop.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_dropped_total",
			Help:      "Tilt readings dropped because the dispatch loop was busy.",
		}),
		presses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_presses_total",
			Help:      "Button presses by outcome.",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store operations by source.",
		}, []string{"source"}),
		retryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retry_queue_batches",
			Help:      "Measurement batches waiting to be written.",
		}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		measurement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurement",
			Help:      "Latest value of each derived metric.",
		}, []string{"variable", "unit"}),
	}

	m.reg.MustRegister(
		m.readings,
		m.dropped,
		m.presses,
		m.storeErrors,
		m.retryDepth,
		m.sessionState,
		m.measurement,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveMetrics records an accepted reading and its derived values.
// Metrics that were not derived this time are removed so a stopped session
// does not keep reporting its last alcohol content.
func (m *Metrics) ObserveMetrics(metrics []ferment.Metric) {
	m.readings.Inc()
	seen := make(map[ferment.MetricName]bool, len(metrics))
	for _, mt := range metrics {
		m.measurement.WithLabelValues(string(mt.Name), mt.Unit).Set(mt.Value)
		seen[mt.Name] = true
	}
	for name, unit := range derivedOnly {
		if !seen[name] {
			m.measurement.DeleteLabelValues(string(name), unit)
		}
	}
}

var derivedOnly = map[ferment.MetricName]string{
	ferment.MetricAlcoholByVolume: ferment.UnitVolumePercent,
	ferment.MetricAlcoholByMass:   ferment.UnitWeightPercent,
}

// Dropped counts a reading lost at ingress.
func (m *Metrics) Dropped() {
	m.dropped.Inc()
}

// Press counts a handled button press.
func (m *Metrics) Press(outcome session.Outcome) {
	m.presses.WithLabelValues(string(outcome)).Inc()
}

// StoreError counts a failed store call. source is "session", "measurements"
// or "init".
func (m *Metrics) StoreError(source string) {
	m.storeErrors.WithLabelValues(source).Inc()
}

// SetRetryDepth reports the retry queue length.
func (m *Metrics) SetRetryDepth(n int) {
	m.retryDepth.Set(float64(n))
}

// SetSessionState marks state as current.
func (m *Metrics) SetSessionState(state session.State) {
	for _, s := range []session.State{
		session.StateInactive,
		session.StateActive,
		session.StateUnmetered,
		session.StateUnknown,
	} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

// WriteTextfile atomically writes the registry to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
