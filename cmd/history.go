package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"pricehistory-extractor/internal/database"
	"pricehistory-extractor/internal/types"
)

var errNoLedger = errors.New("no run ledger configured (use --db or PRICEHISTORY_DB)")

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [SYMBOL]",
		Short: "Show recorded runs, or the outcomes of one symbol",
		Long: `Show the most recent runs recorded in the run ledger with the outcome of
each symbol. With a SYMBOL argument, list that symbol's outcomes across runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 10, "Maximum number of runs or outcomes to show")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabasePath == "" {
		return errNoLedger
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	ledger, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		target := types.Target(strings.ToUpper(strings.TrimSpace(args[0])))
		outcomes, err := ledger.TargetHistory(ctx, target, limit)
		if err != nil {
			return err
		}
		last, err := ledger.LastSuccess(ctx, target)
		if err != nil {
			return err
		}
		renderOutcomes(cmd.OutOrStdout(), outcomes, last)
		return nil
	}

	runs, err := ledger.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	var outcomes []database.Outcome
	for _, run := range runs {
		o, err := ledger.Outcomes(ctx, run.ID)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, o...)
	}
	renderRuns(cmd.OutOrStdout(), runs, outcomes)
	return nil
}
