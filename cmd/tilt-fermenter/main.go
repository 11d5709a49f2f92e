// Command tilt-fermenter records a Tilt hydrometer and lets an operator start
// and stop a fermentation session with a button and an LED.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/tilt-fermenter/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
		cfg      config.Config
	)

	root := &cobra.Command{
		Use:           "tilt-fermenter",
		Short:         "Tilt hydrometer fermentation monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel = logLevel
			}
			cfg = loaded
			setupLogging(cfg.Level())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newRunCmd(&cfg))
	root.AddCommand(newStatusCmd(&cfg))
	root.AddCommand(newDiscoverCmd(&cfg))
	return root
}

func setupLogging(level zerolog.Level) {
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	})
	zerolog.SetGlobalLevel(level)
}
