package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/tilt-fermenter/internal/ble"
	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/gpio"
	"github.com/sweeney/tilt-fermenter/internal/metrics"
	"github.com/sweeney/tilt-fermenter/internal/mqtt"
	"github.com/sweeney/tilt-fermenter/internal/session"
	"github.com/sweeney/tilt-fermenter/internal/status"
	"github.com/sweeney/tilt-fermenter/internal/store"
	"github.com/sweeney/tilt-fermenter/internal/tilt"
)

// daemon holds everything the dispatch loop touches. Only runLoop and the
// handlers it calls may use ctrl, gw and queue.
type daemon struct {
	ctrl    *session.Controller
	gw      store.Gateway
	queue   *store.RetryQueue
	tracker *status.Tracker
	metrics *metrics.Metrics

	// publisher is nil when MQTT is disabled.
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus

	uuid     string
	readings chan ferment.Reading

	storeTimeout time.Duration
	textfile     string
}

// onAdvertisement runs on the scanner goroutine. It decodes and filters, then
// hands the reading to the dispatch loop without blocking.
func (d *daemon) onAdvertisement(a ble.Advertisement) {
	if len(a.ManufacturerData) == 0 {
		return
	}
	b, err := tilt.Decode(a.ManufacturerData, time.Now())
	if err != nil {
		if errors.Is(err, tilt.ErrInvalidData) {
			log.Debug().Err(err).Str("addr", a.Addr).Msg("ble: ignoring malformed tilt advertisement")
		}
		return
	}
	if b.UUID != d.uuid {
		return
	}

	select {
	case d.readings <- b.Reading:
	default:
		d.metrics.Dropped()
		d.tracker.RecordDropped()
		log.Debug().Stringer("beacon", b).Msg("ble: dispatch loop busy, reading dropped")
	}
}

// runLoop is the single consumer of every input. Exactly one handler runs at
// a time, so a reading never sees a half-finished session transition.
func (d *daemon) runLoop(ctx context.Context, now func() time.Time, presses <-chan gpio.Press, flush, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if n := d.queue.Len(); n > 0 {
				log.Warn().Int("pending", n).Msg("store: measurement batches not written before shutdown")
			}
			d.publishLifecycle(now(), "SHUTDOWN", signalName)
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case p := <-presses:
			d.handlePress(ctx, p)

		case r := <-d.readings:
			d.handleReading(ctx, r)

		case <-flush:
			d.handleFlush(ctx)

		case t := <-heartbeat:
			log.Debug().Msg("heartbeat")
			d.publishLifecycle(t, "HEARTBEAT", "")
		}
	}
}

func (d *daemon) handlePress(ctx context.Context, p gpio.Press) {
	if p.Err != nil {
		log.Warn().Err(p.Err).Time("pressed_at", p.Time).Msg("gpio: button driver reported an error")
	}

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	outcome, err := d.ctrl.HandleButtonPress(sctx, p.Time)
	cancel()

	d.metrics.Press(outcome)
	d.tracker.RecordPress()
	if err != nil {
		d.storeFailed("session")
	}
	d.syncStatus()

	var kind ferment.EventKind
	switch outcome {
	case session.OutcomeStarted:
		kind = ferment.EventStart
	case session.OutcomeStopped:
		kind = ferment.EventStop
	default:
		return
	}

	if d.publisher == nil {
		return
	}
	baseline, ok := d.ctrl.CurrentBaseline()
	ev := mqtt.SessionEvent{
		Event:       ferment.Event{Kind: kind, Timestamp: p.Time},
		Baseline:    baseline,
		HasBaseline: ok,
	}
	if err := d.publisher.PublishSession(ev); err != nil {
		log.Warn().Err(err).Msg("mqtt: session publish failed")
	}
}

func (d *daemon) handleReading(ctx context.Context, r ferment.Reading) {
	baseline, ok := d.ctrl.CurrentBaseline()
	ms := ferment.Derive(r, baseline, ok)

	d.tracker.RecordReading(r)
	d.metrics.ObserveMetrics(ms)

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	err := d.queue.Write(sctx, store.Batch{ObservedAt: r.ObservedAt, Metrics: ms})
	cancel()
	if err != nil {
		log.Warn().Err(err).Int("pending", d.queue.Len()).Msg("store: measurement write failed, queued for retry")
		d.storeFailed("measurements")
	}
	d.setPending()

	if d.publisher == nil {
		return
	}
	m := mqtt.Measurements{Device: tiltColour(d.uuid), ObservedAt: r.ObservedAt, Metrics: ms}
	if err := d.publisher.PublishMeasurements(m); err != nil {
		log.Warn().Err(err).Msg("mqtt: measurement publish failed")
	}
}

func (d *daemon) handleFlush(ctx context.Context) {
	if !d.ctrl.Synced() {
		d.sync(ctx)
	}

	if d.queue.Len() > 0 {
		sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
		n, err := d.queue.Flush(sctx)
		cancel()
		if n > 0 {
			log.Info().Int("written", n).Msg("store: retried measurement batches")
		}
		if err != nil {
			log.Warn().Err(err).Int("pending", d.queue.Len()).Msg("store: retry failed")
			d.storeFailed("measurements")
		}
		d.setPending()
	}

	if d.textfile != "" {
		if err := d.metrics.WriteTextfile(d.textfile); err != nil {
			log.Warn().Err(err).Str("path", d.textfile).Msg("metrics: textfile write failed")
		}
	}
}

// sync makes sure the schema exists and derives the session from the store.
// On failure the controller stays unsynced and the next flush tick retries.
func (d *daemon) sync(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	defer d.syncStatus()

	if err := d.gw.CreateDatabase(sctx); err != nil {
		log.Error().Err(err).Msg("store: cannot create schema")
		d.storeFailed("init")
		return
	}
	if err := d.ctrl.Initialize(sctx); err != nil {
		d.storeFailed("init")
	}
}

func (d *daemon) storeFailed(source string) {
	d.metrics.StoreError(source)
	d.tracker.RecordStoreError()
}

func (d *daemon) setPending() {
	n := d.queue.Len()
	d.metrics.SetRetryDepth(n)
	d.tracker.SetPendingRetry(n)
}

func (d *daemon) syncStatus() {
	baseline, ok := d.ctrl.CurrentBaseline()
	state := d.ctrl.State()
	d.tracker.UpdateSession(state, baseline, ok)
	d.metrics.SetSessionState(state)
}

// publishLifecycle sends a retained system event carrying the status snapshot.
func (d *daemon) publishLifecycle(at time.Time, event, reason string) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if event == "HEARTBEAT" {
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("mqtt: system publish failed")
		return
	}
	log.Debug().Str("event", event).Msg("mqtt: published system event")
}

func tiltColour(uuid string) string {
	if c := tilt.ColourOf(uuid); c != "" {
		return c
	}
	return uuid
}
