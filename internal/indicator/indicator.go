// Package indicator renders on/off/blink instructions on a single LED line.
// It owns the line exclusively and knows nothing about sessions.
package indicator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/tilt-fermenter/internal/gpio"
)

// Mode is the rendering mode of the indicator.
type Mode string

const (
	ModeOff      Mode = "OFF"
	ModeOn       Mode = "ON"
	ModeBlinking Mode = "BLINKING"
)

// Indicator drives an output line. At most one blink runs at a time: a new
// Blink, On or Off supersedes any blink still in flight.
type Indicator struct {
	out gpio.Output

	// opMu serializes On/Off/Blink/Close. It may be held while waiting for
	// the blink goroutine, which only ever takes mu.
	opMu sync.Mutex

	mu     sync.Mutex
	steady int
	mode   Mode
	until  time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an indicator over out. The line is assumed to be low.
func New(out gpio.Output) *Indicator {
	return &Indicator{out: out, mode: ModeOff}
}

// On switches the output on and makes "on" the steady state.
func (i *Indicator) On() error {
	return i.setSteady(1)
}

// Off switches the output off and makes "off" the steady state.
func (i *Indicator) Off() error {
	return i.setSteady(0)
}

func (i *Indicator) setSteady(v int) error {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	i.stopBlink()

	i.mu.Lock()
	defer i.mu.Unlock()
	i.steady = v
	i.mode = modeFor(v)
	if err := i.out.SetValue(v); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	return nil
}

// Blink toggles the output every interval. Once duration has elapsed the
// output is returned to the steady state regardless of the toggle phase.
// A blink already in flight is cancelled first.
func (i *Indicator) Blink(interval, duration time.Duration) {
	if interval <= 0 || duration <= 0 {
		log.Warn().
			Dur("interval", interval).
			Dur("duration", duration).
			Msg("indicator: ignoring blink with non-positive timing")
		return
	}

	i.opMu.Lock()
	defer i.opMu.Unlock()

	i.stopBlink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	i.mu.Lock()
	i.mode = ModeBlinking
	i.until = time.Now().Add(duration)
	i.cancel = cancel
	i.done = done
	i.mu.Unlock()

	go i.run(ctx, cancel, interval, duration, done)
}

// run owns cancel and releases it when the blink ends, whichever way it ends.
func (i *Indicator) run(ctx context.Context, cancel context.CancelFunc, interval, duration time.Duration, done chan struct{}) {
	defer close(done)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timer := time.NewTimer(duration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			i.mu.Lock()
			if err := i.out.SetValue(i.steady); err != nil {
				log.Error().Err(err).Msg("indicator: restore after blink failed")
			}
			i.mode = modeFor(i.steady)
			i.until = time.Time{}
			i.cancel = nil
			i.done = nil
			i.mu.Unlock()
			return
		case <-ticker.C:
			i.mu.Lock()
			v, err := i.out.Value()
			if err == nil {
				err = i.out.SetValue(1 - v)
			}
			i.mu.Unlock()
			if err != nil {
				log.Error().Err(err).Msg("indicator: blink toggle failed")
			}
		}
	}
}

// stopBlink cancels the current blink and waits for its goroutine.
// Caller must hold opMu.
func (i *Indicator) stopBlink() {
	i.mu.Lock()
	cancel, done := i.cancel, i.done
	i.cancel, i.done = nil, nil
	i.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until no blink is in flight.
func (i *Indicator) Wait() {
	i.mu.Lock()
	done := i.done
	i.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels any blink and drives the output low. The line itself is
// released by its owner.
func (i *Indicator) Close() error {
	return i.Off()
}

// state returns the current mode and, while blinking, when the blink ends.
func (i *Indicator) state() (Mode, time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mode, i.until
}

func modeFor(v int) Mode {
	if v != 0 {
		return ModeOn
	}
	return ModeOff
}
