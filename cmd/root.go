package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"pricehistory-extractor/internal/config"
	"pricehistory-extractor/internal/types"
)

// errTargetsFailed makes the process exit non-zero after the summary is printed
var errTargetsFailed = errors.New("one or more targets did not complete")

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricehistory",
		Short: "Extract paginated price-history tables into CSV files",
		Long: `pricehistory opens each company page in a headless browser, reveals
its price-history table, walks every page of it and writes the rows to
{SYMBOL}_price_history.csv.

Configuration is read from .pricehistory.yaml (current or home directory),
then .env and PRICEHISTORY_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: .pricehistory.yaml)")
	cmd.PersistentFlags().String("db", "", "Path to the SQLite run ledger")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewHistoryCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the logrus logger. LOG_LEVEL wins over --verbose.
func newLogger(verbose bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// setup loads the layered configuration, applies the command's flags on
// top and validates the result.
func setup(cmd *cobra.Command) (*types.Config, *logrus.Logger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(verbose, cmd.ErrOrStderr())

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

// applyFlags copies explicitly set flags onto cfg. Flags a command does not
// define are skipped.
func applyFlags(cmd *cobra.Command, cfg *types.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("db") {
		v, err := flags.GetString("db")
		if err != nil {
			return err
		}
		cfg.DatabasePath = v
	}
	if changed("output") {
		v, err := flags.GetString("output")
		if err != nil {
			return err
		}
		cfg.OutputDir = v
	}
	if changed("base-url") {
		v, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = v
	}
	if changed("headless") {
		v, err := flags.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.Headless = v
	}
	if changed("wait") {
		v, err := flags.GetDuration("wait")
		if err != nil {
			return err
		}
		cfg.WaitTimeout = v
	}
	if changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.TargetTimeout = v
	}
	if changed("retries") {
		v, err := flags.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.MaxExtractRetries = v
	}
	return nil
}

// resolveTargets picks the symbols to process: arguments, then --symbols,
// then the configured list, then the built-in default list.
func resolveTargets(cmd *cobra.Command, args []string, cfg *types.Config) ([]types.Target, error) {
	var symbols []string
	for _, arg := range args {
		symbols = append(symbols, config.SplitSymbols(arg)...)
	}

	if f := cmd.Flags().Lookup("symbols"); f != nil && f.Changed {
		v, err := cmd.Flags().GetStringSlice("symbols")
		if err != nil {
			return nil, err
		}
		for _, s := range v {
			symbols = append(symbols, config.SplitSymbols(s)...)
		}
	}

	if len(symbols) == 0 {
		symbols = cfg.Symbols
	}
	if len(symbols) == 0 {
		symbols = types.DefaultSymbols
	}
	return config.Targets(symbols), nil
}
