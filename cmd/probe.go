package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"pricehistory-extractor/adapters"
	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/utils"
)

var errProbeFailed = errors.New("one or more symbols failed the probe")

// NewProbeCmd creates the probe command
func NewProbeCmd() *cobra.Command {
	defaults := types.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "probe [SYMBOL...]",
		Short: "Check that the site markup still matches the configured selectors",
		Long: `Open each symbol's page the same way scrape does and report which
selectors resolved: the history trigger, the table, its header and the next
page control. The static HTML is fetched as well, which shows whether the
table is rendered by script. Nothing is written.`,
		Args: cobra.ArbitraryArgs,
		RunE: runProbeCmd,
	}

	cmd.Flags().StringSliceP("symbols", "s", nil, "Comma-separated list of symbols")
	cmd.Flags().String("base-url", defaults.BaseURL, "Base URL of the source site")
	cmd.Flags().Bool("headless", defaults.Headless, "Run the browser headless")
	cmd.Flags().Duration("wait", defaults.WaitTimeout, "Timeout for each element wait")

	return cmd
}

func runProbeCmd(cmd *cobra.Command, args []string) error {
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

	session := utils.NewBrowserSession(cfg, logger)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Teardown()

	client := utils.NewHTTPClient(cfg, logger)
	defer client.Close()

	adapter := adapters.NewPriceHistoryAdapter(cfg, logger)
	reports := make([]adapters.ProbeReport, 0, len(targets))
	for _, target := range targets {
		if err := session.Reset(ctx); err != nil {
			return err
		}
		logger.Infof("Probing %s", target)
		reports = append(reports, adapter.Probe(ctx, client, session, target))
	}

	renderProbe(cmd.OutOrStdout(), reports)
	for _, r := range reports {
		if !r.Healthy() {
			return errProbeFailed
		}
	}
	return nil
}
