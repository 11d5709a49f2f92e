// Package status provides a thread-safe status tracker for the tilt-fermenter
// daemon. It is read when building MQTT lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/session"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Colour      string
	UUID        string
	Store       string // dialect only, never the DSN
	Broker      string
	DebounceMs  int64
	HeartbeatMs int64
	FlushMs     int64
}

// Counts are running totals since startup.
type Counts struct {
	Readings       int
	DroppedReading int
	Presses        int
	StoreErrors    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session       session.State
	Baseline      float64
	HasBaseline   bool
	LastReading   *ferment.Reading
	Counts        Counts
	PendingRetry  int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Session:   session.StateUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateSession records the controller state and baseline.
func (t *Tracker) UpdateSession(state session.State, baseline float64, hasBaseline bool) {
	t.mu.Lock()
	t.snap.Session = state
	t.snap.Baseline = baseline
	t.snap.HasBaseline = hasBaseline
	t.mu.Unlock()
}

// RecordReading stores the latest accepted reading and bumps the counter.
func (t *Tracker) RecordReading(r ferment.Reading) {
	t.mu.Lock()
	t.snap.LastReading = &r
	t.snap.Counts.Readings++
	t.mu.Unlock()
}

// RecordDropped counts a reading that never reached the dispatch loop.
func (t *Tracker) RecordDropped() {
	t.mu.Lock()
	t.snap.Counts.DroppedReading++
	t.mu.Unlock()
}

// RecordPress counts a handled button press.
func (t *Tracker) RecordPress() {
	t.mu.Lock()
	t.snap.Counts.Presses++
	t.mu.Unlock()
}

// RecordStoreError counts a failed store operation.
func (t *Tracker) RecordStoreError() {
	t.mu.Lock()
	t.snap.Counts.StoreErrors++
	t.mu.Unlock()
}

// SetPendingRetry sets the number of measurement batches awaiting a retry.
func (t *Tracker) SetPendingRetry(n int) {
	t.mu.Lock()
	t.snap.PendingRetry = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastReading != nil {
		r := *s.LastReading
		s.LastReading = &r
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
