package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/gpio"
	"github.com/sweeney/tilt-fermenter/internal/indicator"
	"github.com/sweeney/tilt-fermenter/internal/store"
)

// spyIndicator records what the controller asked it to render.
type spyIndicator struct {
	steady *bool // nil until On/Off is called
	ons    int
	offs   int
	blinks int
}

func (s *spyIndicator) On() error {
	on := true
	s.steady = &on
	s.ons++
	return nil
}

func (s *spyIndicator) Off() error {
	off := false
	s.steady = &off
	s.offs++
	return nil
}

func (s *spyIndicator) Blink(interval, duration time.Duration) {
	s.blinks++
}

func (s *spyIndicator) isOn() bool {
	return s.steady != nil && *s.steady
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newController(t *testing.T) (*Controller, *store.Fake, *spyIndicator) {
	t.Helper()
	gw := store.NewFake()
	ind := &spyIndicator{}
	return New(gw, ind, DefaultConfig), gw, ind
}

func TestInitializeNoEvents(t *testing.T) {
	c, _, ind := newController(t)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ind.steady == nil || *ind.steady {
		t.Error("expected indicator switched off")
	}
	if _, ok := c.CurrentBaseline(); ok {
		t.Error("expected no baseline")
	}
	if c.State() != StateInactive {
		t.Errorf("expected INACTIVE, got %s", c.State())
	}
}

func TestInitializeAfterStop(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0, 1.050)
	gw.Events = []ferment.Event{
		{Kind: ferment.EventStart, Timestamp: t0},
		{Kind: ferment.EventStop, Timestamp: t0.Add(time.Hour)},
	}

	c.Initialize(context.Background())

	if ind.isOn() {
		t.Error("expected indicator off after stopped session")
	}
	if _, ok := c.CurrentBaseline(); ok {
		t.Error("expected no baseline")
	}
}

func TestInitializeRestoresBaseline(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0.Add(-time.Minute), 1.061) // before the session, ignored
	gw.Events = []ferment.Event{{Kind: ferment.EventStart, Timestamp: t0}}
	gw.SeedGravity(t0.Add(48*time.Hour), 1.020)
	gw.SeedGravity(t0.Add(time.Second), 1.060) // older, seeded out of order

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The most recent reading since the start is adopted.
	baseline, ok := c.CurrentBaseline()
	if !ok || baseline != 1.020 {
		t.Errorf("expected baseline 1.020, got %v (ok=%v)", baseline, ok)
	}
	if !ind.isOn() {
		t.Error("expected indicator on")
	}
	if c.State() != StateActive {
		t.Errorf("expected ACTIVE, got %s", c.State())
	}
}

func TestInitializeDegraded(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0.Add(-time.Minute), 1.050)
	gw.Events = []ferment.Event{{Kind: ferment.EventStart, Timestamp: t0}}

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ind.isOn() {
		t.Error("expected indicator off in degraded state")
	}
	if _, ok := c.CurrentBaseline(); ok {
		t.Error("expected no baseline in degraded state")
	}
	if c.State() != StateUnmetered {
		t.Errorf("expected UNMETERED, got %s", c.State())
	}

	// The only way out: the next press sees the stored Start and stops.
	out, err := c.HandleButtonPress(context.Background(), t0.Add(time.Hour))
	if err != nil || out != OutcomeStopped {
		t.Fatalf("expected STOPPED, got %s (%v)", out, err)
	}
	if c.State() != StateInactive {
		t.Errorf("expected INACTIVE after stop, got %s", c.State())
	}
}

func TestInitializeStoreFailure(t *testing.T) {
	c, gw, ind := newController(t)
	gw.LastStartError = errors.New("connection refused")

	err := c.Initialize(context.Background())
	if !errors.Is(err, store.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if c.Synced() {
		t.Error("controller should not be synced after a failed initialize")
	}
	if c.State() != StateUnknown {
		t.Errorf("expected UNKNOWN, got %s", c.State())
	}
	if ind.isOn() {
		t.Error("expected indicator off")
	}

	gw.LastStartError = nil
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !c.Synced() {
		t.Error("expected synced after successful retry")
	}
}

func TestPressStartsSession(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0, 1.050)
	c.Initialize(context.Background())

	out, err := c.HandleButtonPress(context.Background(), t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != OutcomeStarted {
		t.Errorf("expected STARTED, got %s", out)
	}

	if len(gw.Events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(gw.Events))
	}
	if gw.Events[0].Kind != ferment.EventStart || !gw.Events[0].Timestamp.Equal(t0.Add(time.Minute)) {
		t.Errorf("unexpected event: %+v", gw.Events[0])
	}
	if !ind.isOn() {
		t.Error("expected indicator on")
	}
	baseline, ok := c.CurrentBaseline()
	if !ok || baseline != 1.050 {
		t.Errorf("expected baseline 1.050, got %v (ok=%v)", baseline, ok)
	}
}

func TestPressStopsSession(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0, 1.050)
	ctx := context.Background()
	c.Initialize(ctx)
	c.HandleButtonPress(ctx, t0.Add(time.Minute))

	out, err := c.HandleButtonPress(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != OutcomeStopped {
		t.Errorf("expected STOPPED, got %s", out)
	}

	if len(gw.Events) != 2 || gw.Events[1].Kind != ferment.EventStop {
		t.Fatalf("expected one Stop event after the Start, got %+v", gw.Events)
	}
	if ind.isOn() {
		t.Error("expected indicator off")
	}
	if _, ok := c.CurrentBaseline(); ok {
		t.Error("expected no baseline after stop")
	}
}

func TestPressWithoutReadingBlinks(t *testing.T) {
	c, gw, ind := newController(t)
	c.Initialize(context.Background())
	offsBefore, onsBefore := ind.offs, ind.ons

	out, err := c.HandleButtonPress(context.Background(), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != OutcomeStartRejected {
		t.Errorf("expected START_REJECTED, got %s", out)
	}

	if gw.EventCount() != 0 {
		t.Errorf("expected no events, got %d", gw.EventCount())
	}
	if ind.blinks != 1 {
		t.Errorf("expected 1 blink, got %d", ind.blinks)
	}
	if ind.offs != offsBefore || ind.ons != onsBefore {
		t.Error("steady state should not be touched by a rejected start")
	}
	if _, ok := c.CurrentBaseline(); ok {
		t.Error("expected no baseline")
	}
}

func TestPressRereadsStoreState(t *testing.T) {
	c, gw, ind := newController(t)
	gw.SeedGravity(t0, 1.050)
	ctx := context.Background()
	c.Initialize(ctx)

	// A Start that appeared in the store after Initialize must be honoured:
	// the press acts on the stored truth, not on what the controller last saw.
	gw.Events = append(gw.Events, ferment.Event{Kind: ferment.EventStart, Timestamp: t0})

	out, _ := c.HandleButtonPress(ctx, t0.Add(time.Minute))
	if out != OutcomeStopped {
		t.Errorf("expected STOPPED, got %s", out)
	}
	if ind.isOn() {
		t.Error("expected indicator off")
	}
}

func TestPressStoreFailures(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		inject func(*store.Fake)
	}{
		{"query state", false, func(f *store.Fake) { f.LastStartError = errors.New("timeout") }},
		{"query gravity", false, func(f *store.Fake) { f.GravityError = errors.New("timeout") }},
		{"write start", false, func(f *store.Fake) { f.WriteEventError = errors.New("disk full") }},
		{"write stop", true, func(f *store.Fake) { f.WriteEventError = errors.New("disk full") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, gw, ind := newController(t)
			gw.SeedGravity(t0, 1.050)
			ctx := context.Background()
			c.Initialize(ctx)
			if tt.active {
				c.HandleButtonPress(ctx, t0.Add(time.Minute))
			}
			eventsBefore := gw.EventCount()
			baselineBefore, hadBaseline := c.CurrentBaseline()
			onBefore := ind.isOn()

			tt.inject(gw)
			out, err := c.HandleButtonPress(ctx, t0.Add(time.Hour))

			if out != OutcomeFailed {
				t.Errorf("expected FAILED, got %s", out)
			}
			if !errors.Is(err, store.ErrStorageUnavailable) {
				t.Errorf("expected ErrStorageUnavailable, got %v", err)
			}
			if gw.EventCount() != eventsBefore {
				t.Error("no event should be written on failure")
			}
			baseline, ok := c.CurrentBaseline()
			if ok != hadBaseline || baseline != baselineBefore {
				t.Errorf("baseline changed: %v/%v -> %v/%v", baselineBefore, hadBaseline, baseline, ok)
			}
			if ind.isOn() != onBefore {
				t.Error("steady indicator state changed on failure")
			}
			if ind.blinks != 1 {
				t.Errorf("expected failure blink, got %d", ind.blinks)
			}
		})
	}
}

func TestFailedStopBlinksBackToOn(t *testing.T) {
	gw := store.NewFake()
	gw.SeedGravity(t0, 1.050)
	out := gpio.NewFakeOutput()
	led := indicator.New(out)
	defer led.Close()
	c := New(gw, led, Config{BlinkInterval: 2 * time.Millisecond, BlinkDuration: 20 * time.Millisecond})

	ctx := context.Background()
	c.Initialize(ctx)
	if got, _ := c.HandleButtonPress(ctx, t0.Add(time.Minute)); got != OutcomeStarted {
		t.Fatalf("expected STARTED, got %s", got)
	}
	before := len(out.History())

	gw.WriteEventError = errors.New("disk full")
	if got, _ := c.HandleButtonPress(ctx, t0.Add(time.Hour)); got != OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", got)
	}
	led.Wait()

	blink := out.History()[before:]
	sawOff := false
	for _, v := range blink {
		if v == 0 {
			sawOff = true
		}
	}
	if !sawOff {
		t.Errorf("expected the failure blink to toggle the LED, got %v", blink)
	}
	if out.Current() != 1 {
		t.Errorf("LED should return to on while the session is still active, got %d", out.Current())
	}
	if baseline, ok := c.CurrentBaseline(); !ok || baseline != 1.050 {
		t.Errorf("baseline should survive a failed stop, got %v (ok=%v)", baseline, ok)
	}
	if c.State() != StateActive {
		t.Errorf("expected ACTIVE, got %s", c.State())
	}
}

func TestBaselineIntegrityAcrossSessions(t *testing.T) {
	c, gw, _ := newController(t)
	ctx := context.Background()
	c.Initialize(ctx)

	derive := func(sg float64) []ferment.Metric {
		baseline, ok := c.CurrentBaseline()
		return ferment.Derive(ferment.Reading{TemperatureC: 20, SpecificGravity: sg}, baseline, ok)
	}

	gw.SeedGravity(t0, 1.060)
	c.HandleButtonPress(ctx, t0)

	for _, sg := range []float64{1.055, 1.040, 1.020} {
		metrics := derive(sg)
		abv, ok := ferment.Find(metrics, ferment.MetricAlcoholByVolume)
		if !ok {
			t.Fatalf("sg %v: expected abv during session", sg)
		}
		if want := ferment.AlcoholByVolume(1.060, sg); abv.Value != want {
			t.Errorf("sg %v: abv %v computed against wrong baseline, want %v", sg, abv.Value, want)
		}
	}

	c.HandleButtonPress(ctx, t0.Add(time.Hour))
	if metrics := derive(1.010); len(metrics) != 2 {
		t.Errorf("expected 2 metrics after stop, got %d", len(metrics))
	}

	gw.SeedGravity(t0.Add(2*time.Hour), 1.045)
	c.HandleButtonPress(ctx, t0.Add(2*time.Hour))
	if baseline, _ := c.CurrentBaseline(); baseline != 1.045 {
		t.Errorf("expected new baseline 1.045, got %v", baseline)
	}
}
