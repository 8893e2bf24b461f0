package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"FinFactor/internal/di"
	"FinFactor/internal/usecase"
	"FinFactor/pkg/config"
)

type rootOptions struct {
	configPath string
	provider   string
	csvDir     string
	logLevel   string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "factorctl",
		Short:         "Compute and evaluate cross-sectional factors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (defaults are used when empty)")
	f.StringVar(&opts.provider, "provider", "", "override the data provider type (memory, csv, clickhouse, postgres)")
	f.StringVar(&opts.csvDir, "csv-dir", "", "directory of wide CSV files for the csv provider")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline for a command")

	root.AddCommand(newListCmd(opts), newComputeCmd(opts), newAnalyzeCmd(opts))
	return root
}

// loadConfig reads the config file when given and applies flag overrides.
// Logs go to stderr so command output stays clean.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadWithEnv(o.configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if o.provider != "" {
		cfg.Provider.Type = o.provider
	}
	if o.csvDir != "" {
		cfg.Provider.CSVDir = o.csvDir
		if o.provider == "" {
			cfg.Provider.Type = "csv"
		}
	}
	cfg.Log.Level = o.logLevel
	cfg.Log.Format = "console"
	cfg.Log.Output = "stderr"
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) analysis() (*usecase.FactorAnalysis, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return di.InitializeAnalysis(cfg)
}
