package store

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

// Measurement is a stored metric as recorded by Fake.
type Measurement struct {
	ObservedAt time.Time
	Metric     ferment.Metric
}

// Fake is an in-memory Gateway for tests.
type Fake struct {
	mu sync.Mutex

	// Events contains every event written, in order.
	Events []ferment.Event

	// Measurements contains every metric written, in order.
	Measurements []Measurement

	// Per-operation errors; when set the operation fails with a *Error.
	CreateError     error
	LastStartError  error
	GravityError    error
	WriteDataError  error
	WriteEventError error

	// Created tracks if CreateDatabase succeeded.
	Created bool

	// Closed tracks if Close was called.
	Closed bool

	// WriteDataCalls counts WriteData invocations, including failed and empty ones.
	WriteDataCalls int
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// CreateDatabase marks the fake as created.
func (f *Fake) CreateDatabase(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateError != nil {
		return wrap("create database", f.CreateError)
	}
	f.Created = true
	return nil
}

// LastStartTime mirrors SQLStore.LastStartTime over the recorded events.
func (f *Fake) LastStartTime(ctx context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LastStartError != nil {
		return time.Time{}, false, wrap("query last start time", f.LastStartError)
	}

	if len(f.Events) == 0 {
		return time.Time{}, false, nil
	}
	latest := f.Events[len(f.Events)-1]
	if latest.Kind != ferment.EventStart {
		return time.Time{}, false, nil
	}
	return latest.Timestamp, true, nil
}

// SpecificGravity mirrors SQLStore.SpecificGravity over the recorded measurements.
func (f *Fake) SpecificGravity(ctx context.Context, since time.Time) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GravityError != nil {
		return 0, false, wrap("query specific gravity", f.GravityError)
	}

	var found *Measurement
	for i := range f.Measurements {
		m := &f.Measurements[i]
		if m.Metric.Name != ferment.MetricSpecificGravity {
			continue
		}
		if !since.IsZero() && m.ObservedAt.Before(since) {
			continue
		}
		if found == nil || !m.ObservedAt.Before(found.ObservedAt) {
			found = m
		}
	}
	if found == nil {
		return 0, false, nil
	}
	return found.Metric.Value, true, nil
}

// WriteData records metrics.
func (f *Fake) WriteData(ctx context.Context, observedAt time.Time, metrics []ferment.Metric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteDataCalls++
	if len(metrics) == 0 {
		return nil
	}
	if f.WriteDataError != nil {
		return wrap("write data", f.WriteDataError)
	}
	for _, m := range metrics {
		f.Measurements = append(f.Measurements, Measurement{ObservedAt: observedAt, Metric: m})
	}
	return nil
}

// WriteEvent records event.
func (f *Fake) WriteEvent(ctx context.Context, event ferment.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteEventError != nil {
		return wrap("write event", f.WriteEventError)
	}
	f.Events = append(f.Events, event)
	return nil
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SeedGravity records a single specific gravity measurement.
func (f *Fake) SeedGravity(at time.Time, sg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Measurements = append(f.Measurements, Measurement{
		ObservedAt: at,
		Metric: ferment.Metric{
			Name:  ferment.MetricSpecificGravity,
			Value: sg,
			Unit:  ferment.UnitDimensionless,
		},
	})
}

// EventCount returns the number of recorded events.
func (f *Fake) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Events)
}

// MeasurementsNamed returns every recorded measurement with the given name.
func (f *Fake) MeasurementsNamed(name ferment.MetricName) []Measurement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Measurement
	for _, m := range f.Measurements {
		if m.Metric.Name == name {
			out = append(out, m)
		}
	}
	return out
}
