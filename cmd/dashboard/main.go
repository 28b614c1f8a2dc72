package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/deerbay/olympics-dashboard/internal/config"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
)

const envConfigPath = "DASHBOARD_CONFIG"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	eventsPath string
	genderPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "dashboard",
		Short:        "Olympic medal dashboard: data API and query CLI.",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv(envConfigPath), "path to the YAML config file (env "+envConfigPath+")")
	flags.StringVar(&opts.eventsPath, "events", "", "event table CSV, overrides data.events_path")
	flags.StringVar(&opts.genderPath, "gender", "", "gender-ratio table CSV, overrides data.gender_path")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newQueryCmd(opts),
		newDimensionsCmd(opts),
	)
	return rootCmd
}

// setup loads and validates the config with flag overrides applied and
// returns the logger to use.
func (o *rootOptions) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.eventsPath != "" {
		cfg.Data.EventsPath = o.eventsPath
	}
	if o.genderPath != "" {
		cfg.Data.GenderPath = o.genderPath
	}
	if o.verbose {
		cfg.Log.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.Log.Verbose), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
