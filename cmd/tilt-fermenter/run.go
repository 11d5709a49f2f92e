package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/tilt-fermenter/internal/ble"
	"github.com/sweeney/tilt-fermenter/internal/config"
	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/gpio"
	"github.com/sweeney/tilt-fermenter/internal/indicator"
	"github.com/sweeney/tilt-fermenter/internal/metrics"
	"github.com/sweeney/tilt-fermenter/internal/mqtt"
	"github.com/sweeney/tilt-fermenter/internal/session"
	"github.com/sweeney/tilt-fermenter/internal/status"
	"github.com/sweeney/tilt-fermenter/internal/store"
)

// readingBuffer is how many decoded readings may wait for the dispatch loop.
const readingBuffer = 16

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		tiltID   string
		dsn      string
		broker   string
		textfile string
		button   int
		led      int
		hci      int
		debounce time.Duration
		hb       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fermentation monitor daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			flags := cmd.Flags()
			if flags.Changed("tilt") {
				c.Tilt = tiltID
			}
			if flags.Changed("store") {
				c.Store = dsn
			}
			if flags.Changed("broker") {
				c.MQTT.Broker = broker
			}
			if flags.Changed("metrics-file") {
				c.Metrics.Textfile = textfile
			}
			if flags.Changed("pin-button") {
				c.GPIO.Button = button
			}
			if flags.Changed("pin-led") {
				c.GPIO.LED = led
			}
			if flags.Changed("hci") {
				c.BLE.Device = hci
			}
			if flags.Changed("debounce") {
				c.GPIO.Debounce = debounce
			}
			if flags.Changed("heartbeat") {
				c.MQTT.Heartbeat = hb
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(c)
		},
	}

	f := cmd.Flags()
	f.StringVar(&tiltID, "tilt", "", "Tilt colour or beacon UUID")
	f.StringVar(&dsn, "store", "", "SQLite path or postgres:// DSN")
	f.StringVar(&broker, "broker", "", "MQTT broker address (empty disables MQTT)")
	f.StringVar(&textfile, "metrics-file", "", "Prometheus textfile path (empty disables)")
	f.IntVar(&button, "pin-button", gpio.DefaultPinButton, "BCM pin number for the button")
	f.IntVar(&led, "pin-led", gpio.DefaultPinLED, "BCM pin number for the LED")
	f.IntVar(&hci, "hci", 0, "HCI device id")
	f.DurationVar(&debounce, "debounce", 50*time.Millisecond, "Button debounce window")
	f.DurationVar(&hb, "heartbeat", 15*time.Minute, "MQTT heartbeat interval (0 to disable)")
	return cmd
}

func run(cfg config.Config) error {
	uuid := cfg.UUID()

	db, err := store.Open(cfg.Store, uuid)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.LED)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer out.Close()
	led := indicator.New(out)
	defer led.Close()

	button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.Button, cfg.GPIO.Debounce)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	scanner, err := ble.Init(cfg.BLE.Device, cfg.BLE.Active)
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer scanner.Stop()

	tracker := status.NewTracker(time.Now(), status.Config{
		Colour:      tiltColour(uuid),
		UUID:        uuid,
		Store:       db.Dialect(),
		Broker:      cfg.MQTT.Broker,
		DebounceMs:  cfg.GPIO.Debounce.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		FlushMs:     cfg.Flush.Milliseconds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		ctrl: session.New(db, led, session.Config{
			BlinkInterval: cfg.Indicator.BlinkInterval,
			BlinkDuration: cfg.Indicator.BlinkDuration,
		}),
		gw:           db,
		queue:        store.NewRetryQueue(db, cfg.Retry),
		tracker:      tracker,
		metrics:      metrics.New(),
		uuid:         uuid,
		readings:     make(chan ferment.Reading, readingBuffer),
		storeTimeout: cfg.Timeout,
		textfile:     cfg.Metrics.Textfile,
	}

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		d.publisher = publisher
		d.mqttStatus = publisher
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.sync(ctx)
	d.publishLifecycle(time.Now(), "STARTUP", "")

	log.Info().
		Str("tilt", tracker.Snapshot().Config.Colour).
		Str("uuid", uuid).
		Str("store", db.Dialect()).
		Str("broker", cfg.MQTT.Broker).
		Dur("debounce", cfg.GPIO.Debounce).
		Dur("flush", cfg.Flush).
		Msg("started")

	flush := time.NewTicker(cfg.Flush)
	defer flush.Stop()

	var heartbeat <-chan time.Time
	if cfg.MQTT.Heartbeat > 0 {
		hb := time.NewTicker(cfg.MQTT.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scanner.Scan(gctx, d.onAdvertisement)
	})
	g.Go(func() error {
		defer cancel()
		return d.runLoop(gctx, time.Now, button.Presses(), flush.C, heartbeat, sigCh)
	})
	return g.Wait()
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
