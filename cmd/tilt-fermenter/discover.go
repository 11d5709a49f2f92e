package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/sweeney/tilt-fermenter/internal/ble"
	"github.com/sweeney/tilt-fermenter/internal/config"
	"github.com/sweeney/tilt-fermenter/internal/tilt"
)

func newDiscoverCmd(cfg *config.Config) *cobra.Command {
	var (
		window time.Duration
		hci    int
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan for Tilt hydrometers and list them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device := cfg.BLE.Device
			if cmd.Flags().Changed("hci") {
				device = hci
			}

			log.Info().Dur("window", window).Msg("Scanning for Tilt hydrometers")

			handle, err := ble.Init(device, true)
			if err != nil {
				return fmt.Errorf("init bluetooth: %w", err)
			}
			defer handle.Stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), window)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			found, err := discover(ctx, handle)
			if err != nil {
				return err
			}
			printDiscovered(os.Stdout, found)
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 5*time.Second, "How long to scan")
	cmd.Flags().IntVar(&hci, "hci", 0, "HCI device id")
	return cmd
}

type sighting struct {
	beacon tilt.Beacon
	addr   string
	rssi   int
	seen   int
}

// discover collects the latest beacon per Tilt UUID until ctx is done.
func discover(ctx context.Context, s ble.Scanner) (map[string]sighting, error) {
	var mu sync.Mutex
	found := make(map[string]sighting)

	err := s.Scan(ctx, func(a ble.Advertisement) {
		b, err := tilt.Decode(a.ManufacturerData, time.Now())
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		prev := found[b.UUID]
		found[b.UUID] = sighting{beacon: b, addr: a.Addr, rssi: a.RSSI, seen: prev.seen + 1}
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

func printDiscovered(w io.Writer, found map[string]sighting) {
	if len(found) == 0 {
		fmt.Fprintln(w, "no Tilt hydrometers found")
		return
	}
	uuids := maps.Keys(found)
	sort.Strings(uuids)
	for _, uuid := range uuids {
		s := found[uuid]
		fmt.Fprintf(w, "%-7s %s  addr=%s rssi=%d seen=%d  %.1f°C SG %.3f\n",
			s.beacon.Colour, uuid, s.addr, s.rssi, s.seen,
			s.beacon.Reading.TemperatureC, s.beacon.Reading.SpecificGravity)
	}
}
