package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/mcprice/config"
	"github.com/bcdannyboy/mcprice/logger"
	"github.com/bcdannyboy/mcprice/pricing"
)

var (
	logLevel  string
	logFormat string
	precision int
	cpuStats  bool

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mcprice",
	Short: "Monte Carlo pricer for options and structured products",
	Long: `mcprice values derivatives by simulation against a market snapshot.

It provides:
  - Vanilla, path-dependent, barrier and early-exercise options
  - Autocallables (phoenix, memory, eagle, defensive), airbags and twin-wins
  - Flat, SVI, SSVI, Heston and local volatility models
  - Calibration of those models to option quotes
  - Finite-difference Greeks on common random numbers

Requests are YAML or JSON files; engine defaults come from MCPRICE_* environment
variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		log = logger.New(cfg.Logger())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().IntVar(&precision, "precision", 6, "decimal places in the output")
	rootCmd.PersistentFlags().BoolVar(&cpuStats, "cpu-stats", false, "log CPU utilisation while simulating")
}

func newEngine(opts ...pricing.Option) *pricing.Engine {
	base := []pricing.Option{
		pricing.WithWorkers(cfg.Workers),
		pricing.WithBlockSize(cfg.BlockSize),
		pricing.WithConfidence(cfg.Confidence),
		pricing.WithPilotPaths(cfg.PilotPaths),
		pricing.WithLogger(log),
	}
	return pricing.NewEngine(append(base, opts...)...)
}

// signalContext is cancelled on SIGINT or SIGTERM so a long run stops cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
