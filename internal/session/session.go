// Package session owns the decision whether a fermentation is being tracked
// and against which baseline gravity.
//
// The store is the only source of truth for whether a session is active; it
// is re-read at every decision. The baseline gravity is the single value kept
// in memory, set when this process starts a session (or reconstructs one at
// startup) and cleared when it stops one.
package session

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/store"
)

// Indicator renders session feedback to the operator.
type Indicator interface {
	On() error
	Off() error
	Blink(interval, duration time.Duration)
}

// Outcome is the result of a button press.
type Outcome string

const (
	OutcomeStarted       Outcome = "STARTED"
	OutcomeStopped       Outcome = "STOPPED"
	OutcomeStartRejected Outcome = "START_REJECTED" // no gravity reading to use as baseline
	OutcomeFailed        Outcome = "FAILED"         // the store failed; nothing changed
)

// State is a display-only summary of the controller.
type State string

const (
	StateInactive State = "INACTIVE"
	StateActive   State = "ACTIVE"
	// StateUnmetered: a Start event is stored but no baseline could be
	// reconstructed at startup.
	StateUnmetered State = "UNMETERED"
	StateUnknown   State = "UNKNOWN"
)

// Config holds the operator feedback timing.
type Config struct {
	BlinkInterval time.Duration
	BlinkDuration time.Duration
}

// DefaultConfig matches a short, clearly visible failure signal.
var DefaultConfig = Config{
	BlinkInterval: 250 * time.Millisecond,
	BlinkDuration: 3 * time.Second,
}

// Controller is the session state machine.
// Not safe for concurrent use: all calls must come from one dispatch loop.
type Controller struct {
	store     store.Gateway
	indicator Indicator
	cfg       Config

	baseline    float64
	hasBaseline bool
	degraded    bool
	synced      bool
}

// New creates a controller. Call Initialize before handling presses.
func New(gw store.Gateway, ind Indicator, cfg Config) *Controller {
	return &Controller{store: gw, indicator: ind, cfg: cfg}
}

// Initialize derives the session state from the store.
// On a store failure the indicator is switched off, no baseline is held and
// the error is returned; Synced reports false until a later Initialize or
// button press succeeds.
func (c *Controller) Initialize(ctx context.Context) error {
	c.clear()

	started, active, err := c.store.LastStartTime(ctx)
	if err != nil {
		log.Error().Err(err).Str("action", "initialize").Msg("session: cannot read session state")
		c.setIndicator(false)
		return err
	}
	log.Info().
		Bool("active", active).
		Time("started_at", started).
		Msg("session: restored state from store")

	if !active {
		c.synced = true
		c.setIndicator(false)
		return nil
	}

	sg, ok, err := c.store.SpecificGravity(ctx, started)
	if err != nil {
		log.Error().Err(err).Str("action", "initialize").Time("started_at", started).
			Msg("session: cannot read baseline gravity")
		c.setIndicator(false)
		return err
	}
	c.synced = true

	if !ok || !validGravity(sg) {
		c.degraded = true
		log.Warn().
			Time("started_at", started).
			Msg("session: active session has no gravity reading since its start; alcohol metrics unavailable until the session is stopped and restarted")
		c.setIndicator(false)
		return nil
	}

	c.baseline, c.hasBaseline = sg, true
	log.Info().Float64("baseline_sg", sg).Msg("session: baseline restored")
	c.setIndicator(true)
	return nil
}

// HandleButtonPress toggles the session. Activity is re-read from the store;
// no cached flag is trusted.
func (c *Controller) HandleButtonPress(ctx context.Context, at time.Time) (Outcome, error) {
	logger := log.With().Time("pressed_at", at).Logger()
	logger.Info().Msg("session: button pressed")

	started, active, err := c.store.LastStartTime(ctx)
	if err != nil {
		return c.fail(err, at, "query session state")
	}

	if active {
		if err := c.store.WriteEvent(ctx, ferment.Event{Kind: ferment.EventStop, Timestamp: at}); err != nil {
			return c.fail(err, at, "stop session")
		}
		c.clear()
		c.synced = true
		c.setIndicator(false)
		logger.Info().Time("started_at", started).Msg("session: stopped")
		return OutcomeStopped, nil
	}

	sg, ok, err := c.store.SpecificGravity(ctx, time.Time{})
	if err != nil {
		return c.fail(err, at, "query baseline gravity")
	}
	if !ok || !validGravity(sg) {
		c.clear()
		c.synced = true
		logger.Warn().Msg("session: unable to start, no specific gravity reading yet; press again once the hydrometer has reported")
		c.indicator.Blink(c.cfg.BlinkInterval, c.cfg.BlinkDuration)
		return OutcomeStartRejected, nil
	}

	if err := c.store.WriteEvent(ctx, ferment.Event{Kind: ferment.EventStart, Timestamp: at}); err != nil {
		return c.fail(err, at, "start session")
	}
	c.clear()
	c.baseline, c.hasBaseline = sg, true
	c.synced = true
	c.setIndicator(true)
	logger.Info().Float64("baseline_sg", sg).Msg("session: started")
	return OutcomeStarted, nil
}

// CurrentBaseline returns the baseline gravity held by this process.
// It never touches the store.
func (c *Controller) CurrentBaseline() (float64, bool) {
	return c.baseline, c.hasBaseline
}

// Synced reports whether the last attempt to read the store succeeded.
func (c *Controller) Synced() bool {
	return c.synced
}

// State summarizes the controller for status output.
func (c *Controller) State() State {
	switch {
	case !c.synced:
		return StateUnknown
	case c.hasBaseline:
		return StateActive
	case c.degraded:
		return StateUnmetered
	default:
		return StateInactive
	}
}

// fail logs a store failure, signals it on the indicator and leaves the
// session exactly as it was.
func (c *Controller) fail(err error, at time.Time, action string) (Outcome, error) {
	log.Error().
		Err(err).
		Time("pressed_at", at).
		Str("action", action).
		Msg("session: store failure, nothing changed; press again to retry")
	c.indicator.Blink(c.cfg.BlinkInterval, c.cfg.BlinkDuration)
	return OutcomeFailed, err
}

func (c *Controller) clear() {
	c.baseline, c.hasBaseline = 0, false
	c.degraded = false
}

func (c *Controller) setIndicator(on bool) {
	var err error
	if on {
		err = c.indicator.On()
	} else {
		err = c.indicator.Off()
	}
	if err != nil {
		log.Error().Err(err).Bool("on", on).Msg("session: indicator update failed")
	}
}

func validGravity(sg float64) bool {
	return sg > 0 && !math.IsNaN(sg) && !math.IsInf(sg, 0)
}
