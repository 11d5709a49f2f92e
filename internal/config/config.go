// Package config holds daemon settings: built-in defaults, overlaid by an
// optional YAML file, overlaid by command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/tilt-fermenter/internal/gpio"
	"github.com/sweeney/tilt-fermenter/internal/tilt"
)

// Config is the full daemon configuration.
type Config struct {
	// Tilt is a colour name or a beacon UUID.
	Tilt string `yaml:"tilt"`

	// Store is a SQLite path or a postgres:// DSN.
	Store string `yaml:"store"`

	LogLevel string `yaml:"log_level"`

	GPIO      GPIO          `yaml:"gpio"`
	Indicator Indicator     `yaml:"indicator"`
	BLE       BLE           `yaml:"ble"`
	MQTT      MQTT          `yaml:"mqtt"`
	Metrics   Metrics       `yaml:"metrics"`
	Flush     time.Duration `yaml:"flush"`
	Timeout   time.Duration `yaml:"store_timeout"`
	Retry     int           `yaml:"retry_batches"`
}

// GPIO selects the chip and BCM pins.
type GPIO struct {
	Chip     string        `yaml:"chip"`
	Button   int           `yaml:"button"`
	LED      int           `yaml:"led"`
	Debounce time.Duration `yaml:"debounce"`
}

// Indicator controls the failure blink.
type Indicator struct {
	BlinkInterval time.Duration `yaml:"blink_interval"`
	BlinkDuration time.Duration `yaml:"blink_duration"`
}

// BLE selects the HCI adapter.
type BLE struct {
	Device int  `yaml:"device"`
	Active bool `yaml:"active"`
}

// MQTT configures the optional mirror. An empty broker disables it.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Metrics configures the Prometheus textfile. An empty path disables it.
type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tilt:     "red",
		Store:    "/var/lib/tilt-fermenter/tilt.db",
		LogLevel: "info",
		GPIO: GPIO{
			Chip:     gpio.DefaultChip,
			Button:   gpio.DefaultPinButton,
			LED:      gpio.DefaultPinLED,
			Debounce: 50 * time.Millisecond,
		},
		Indicator: Indicator{
			BlinkInterval: 250 * time.Millisecond,
			BlinkDuration: 3 * time.Second,
		},
		MQTT: MQTT{
			ClientID:  "tilt-fermenter",
			Heartbeat: 15 * time.Minute,
		},
		Flush:   30 * time.Second,
		Timeout: 5 * time.Second,
		Retry:   256,
	}
}

// Load returns the defaults overlaid by the YAML file at path. An empty path
// returns the defaults. Fields missing from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	if _, err := tilt.ResolveUUID(c.Tilt); err != nil {
		return fmt.Errorf("tilt: %w", err)
	}
	if strings.TrimSpace(c.Store) == "" {
		return fmt.Errorf("store: must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.GPIO.Chip == "" {
		return fmt.Errorf("gpio.chip: must not be empty")
	}
	if c.GPIO.Button < 0 || c.GPIO.LED < 0 {
		return fmt.Errorf("gpio: pins must be non-negative (button=%d led=%d)", c.GPIO.Button, c.GPIO.LED)
	}
	if c.GPIO.Button == c.GPIO.LED {
		return fmt.Errorf("gpio: button and led share pin %d", c.GPIO.Button)
	}
	if c.GPIO.Debounce < 0 {
		return fmt.Errorf("gpio.debounce: must not be negative")
	}
	if c.Indicator.BlinkInterval <= 0 || c.Indicator.BlinkDuration <= 0 {
		return fmt.Errorf("indicator: blink interval and duration must be positive")
	}
	if c.Indicator.BlinkInterval > c.Indicator.BlinkDuration {
		return fmt.Errorf("indicator: blink interval %v exceeds duration %v",
			c.Indicator.BlinkInterval, c.Indicator.BlinkDuration)
	}
	if c.BLE.Device < 0 {
		return fmt.Errorf("ble.device: must not be negative")
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("mqtt.heartbeat: must not be negative")
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt.client_id: required when a broker is set")
	}
	if c.Flush <= 0 {
		return fmt.Errorf("flush: must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("store_timeout: must be positive")
	}
	if c.Retry < 1 {
		return fmt.Errorf("retry_batches: must be at least 1")
	}
	return nil
}

// UUID returns the normalized beacon UUID. Call Validate first.
func (c Config) UUID() string {
	uuid, _ := tilt.ResolveUUID(c.Tilt)
	return uuid
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
