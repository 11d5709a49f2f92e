package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tilt != "red" {
		t.Errorf("Tilt: got %q, want red", cfg.Tilt)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
tilt: green
store: postgres://brew@localhost/brew
gpio:
  button: 22
  debounce: 100ms
mqtt:
  broker: tcp://192.168.1.200:1883
  heartbeat: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tilt != "green" {
		t.Errorf("Tilt: got %q, want green", cfg.Tilt)
	}
	if cfg.Store != "postgres://brew@localhost/brew" {
		t.Errorf("Store: got %q", cfg.Store)
	}
	if cfg.GPIO.Button != 22 {
		t.Errorf("GPIO.Button: got %d, want 22", cfg.GPIO.Button)
	}
	if cfg.GPIO.Debounce != 100*time.Millisecond {
		t.Errorf("GPIO.Debounce: got %v, want 100ms", cfg.GPIO.Debounce)
	}
	if cfg.GPIO.LED != 27 {
		t.Errorf("GPIO.LED should keep default 27, got %d", cfg.GPIO.LED)
	}
	if cfg.MQTT.Heartbeat != 5*time.Minute {
		t.Errorf("MQTT.Heartbeat: got %v, want 5m", cfg.MQTT.Heartbeat)
	}
	if cfg.MQTT.ClientID != "tilt-fermenter" {
		t.Errorf("MQTT.ClientID should keep default, got %q", cfg.MQTT.ClientID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "gpio: [1, 2\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown colour", func(c *Config) { c.Tilt = "mauve" }, "tilt"},
		{"uuid accepted", func(c *Config) { c.Tilt = "A495BB10-C5B1-4B44-B512-1370F02D74DE" }, ""},
		{"empty store", func(c *Config) { c.Store = " " }, "store"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"empty chip", func(c *Config) { c.GPIO.Chip = "" }, "gpio.chip"},
		{"negative pin", func(c *Config) { c.GPIO.Button = -1 }, "non-negative"},
		{"shared pin", func(c *Config) { c.GPIO.LED = c.GPIO.Button }, "share"},
		{"negative debounce", func(c *Config) { c.GPIO.Debounce = -time.Millisecond }, "debounce"},
		{"zero blink interval", func(c *Config) { c.Indicator.BlinkInterval = 0 }, "indicator"},
		{"interval over duration", func(c *Config) { c.Indicator.BlinkInterval = time.Minute }, "exceeds"},
		{"negative ble device", func(c *Config) { c.BLE.Device = -1 }, "ble.device"},
		{"broker without client id", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.ClientID = "" }, "client_id"},
		{"zero flush", func(c *Config) { c.Flush = 0 }, "flush"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "store_timeout"},
		{"no retry room", func(c *Config) { c.Retry = 0 }, "retry_batches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestUUID(t *testing.T) {
	cfg := Default()
	cfg.Tilt = "Pink"
	if got := cfg.UUID(); got != "a495bb80c5b14b44b5121370f02d74de" {
		t.Errorf("UUID: got %q", got)
	}
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Level: got %v, want debug", cfg.Level())
	}
	cfg.LogLevel = ""
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Level: got %v, want info", cfg.Level())
	}
}
