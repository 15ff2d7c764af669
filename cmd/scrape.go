package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pricehistory-extractor/extractor"
	"pricehistory-extractor/internal/database"
	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/utils"
)

// NewScrapeCmd creates the scrape command
func NewScrapeCmd() *cobra.Command {
	defaults := types.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "scrape [SYMBOL...]",
		Short: "Extract the full price history of each symbol",
		Long: `Extract the full price history of each symbol, one after another, in a
single browser session. Each symbol is written to
{output}/{SYMBOL}_price_history.csv, overwriting any earlier run.

A symbol that fails is reported and the run moves on; rows extracted before
a failure are still written. The exit code is non-zero if any symbol did
not complete.`,
		Example: `  pricehistory scrape
  pricehistory scrape NABIL SADBL -o data
  pricehistory scrape --symbols CBBL,NABIL --db runs.db`,
		Args: cobra.ArbitraryArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringSliceP("symbols", "s", nil, "Comma-separated list of symbols")
	cmd.Flags().StringP("output", "o", defaults.OutputDir, "Directory for CSV artifacts")
	cmd.Flags().String("base-url", defaults.BaseURL, "Base URL of the source site")
	cmd.Flags().Bool("headless", defaults.Headless, "Run the browser headless")
	cmd.Flags().Duration("wait", defaults.WaitTimeout, "Timeout for each element wait")
	cmd.Flags().DurationP("timeout", "t", defaults.TargetTimeout, "Overall timeout per symbol")
	cmd.Flags().Int("retries", defaults.MaxExtractRetries, "Extraction retries for an unrendered or stale page")

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cmd, args, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []extractor.DriverOption
	var ledger *database.RunDB
	var runID int64
	if cfg.DatabasePath != "" {
		ledger, err = database.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		runID, err = ledger.BeginRun(ctx, targets, time.Now())
		if err != nil {
			return err
		}
		opts = append(opts, extractor.WithRecorder(ledger, runID))
		logger.Debugf("Recording run %d in %s", runID, ledger.Path())
	}

	driver := extractor.NewDriver(cfg, utils.NewBrowserSession(cfg, logger), logger, opts...)
	summary, err := driver.Run(ctx, targets)

	if ledger != nil {
		if ferr := ledger.FinishRun(context.WithoutCancel(ctx), runID, time.Now()); ferr != nil {
			logger.Warnf("Failed to finish run %d: %v", runID, ferr)
		}
	}
	if err != nil {
		return err
	}

	renderSummary(cmd.OutOrStdout(), summary)
	if summary.Failed() {
		return errTargetsFailed
	}
	return nil
}
