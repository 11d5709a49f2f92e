package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/tilt-fermenter/internal/config"
	"github.com/sweeney/tilt-fermenter/internal/session"
	"github.com/sweeney/tilt-fermenter/internal/status"
	"github.com/sweeney/tilt-fermenter/internal/store"
)

// quietIndicator satisfies session.Indicator without touching hardware.
type quietIndicator struct{}

func (quietIndicator) On() error                { return nil }
func (quietIndicator) Off() error               { return nil }
func (quietIndicator) Blink(_, _ time.Duration) {}

func newStatusCmd(cfg *config.Config) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the session state recorded in the store and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			if cmd.Flags().Changed("store") {
				c.Store = dsn
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			db, err := store.Open(c.Store, c.UUID())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), c.Timeout)
			defer cancel()

			if err := db.CreateDatabase(ctx); err != nil {
				return fmt.Errorf("prepare store: %w", err)
			}
			snap, err := readStatus(ctx, db, c, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(status.FormatJSON(snap)))
			return err
		},
	}
	cmd.Flags().StringVar(&dsn, "store", "", "SQLite path or postgres:// DSN")
	return cmd
}

// readStatus derives the session the daemon would restore from gw.
func readStatus(ctx context.Context, gw store.Gateway, c config.Config, now time.Time) (status.Snapshot, error) {
	ctrl := session.New(gw, quietIndicator{}, session.DefaultConfig)
	if err := ctrl.Initialize(ctx); err != nil {
		return status.Snapshot{}, fmt.Errorf("read session: %w", err)
	}
	baseline, ok := ctrl.CurrentBaseline()

	uuid := c.UUID()
	return status.Snapshot{
		Session:     ctrl.State(),
		Baseline:    baseline,
		HasBaseline: ok,
		StartTime:   now,
		Now:         now,
		Config: status.Config{
			Colour:      tiltColour(uuid),
			UUID:        uuid,
			Store:       store.DialectOf(c.Store),
			Broker:      c.MQTT.Broker,
			DebounceMs:  c.GPIO.Debounce.Milliseconds(),
			HeartbeatMs: c.MQTT.Heartbeat.Milliseconds(),
			FlushMs:     c.Flush.Milliseconds(),
		},
	}, nil
}
