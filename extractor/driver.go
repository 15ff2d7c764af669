package extractor

import (
	"context"
	"fmt"
	"time"

	"pricehistory-extractor/internal/types"
)

// ResultRecorder receives every target outcome, e.g. the run ledger
type ResultRecorder interface {
	RecordResult(ctx context.Context, runID int64, result types.TargetResult) error
}

// Driver runs the extraction over a list of targets with one browser
// session, strictly one target at a time.
type Driver struct {
	session   types.Session
	extractor *PriceHistoryExtractor
	config    *types.Config
	logger    types.Logger
	recorder  ResultRecorder
	runID     int64
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithRecorder reports every target outcome to r under runID
func WithRecorder(r ResultRecorder, runID int64) DriverOption {
	return func(d *Driver) {
		d.recorder = r
		d.runID = runID
	}
}

// NewDriver creates a driver owning session
func NewDriver(config *types.Config, session types.Session, logger types.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		session:   session,
		extractor: NewPriceHistoryExtractor(config, logger),
		config:    config,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run extracts every target in order. Only a session that cannot start
// aborts the run; a failing target is logged and the next one proceeds.
// The session is torn down before Run returns on every path.
func (d *Driver) Run(ctx context.Context, targets []types.Target) (types.RunSummary, error) {
	summary := types.RunSummary{Started: time.Now()}

	if err := d.session.Start(ctx); err != nil {
		d.session.Teardown()
		summary.Finished = time.Now()
		return summary, err
	}
	defer d.session.Teardown()

	d.logger.Infof("Starting extraction for %d targets: %v", len(targets), targets)

	for i, target := range targets {
		var result types.TargetResult
		if err := ctx.Err(); err != nil {
			result = types.TargetResult{
				Target:   target,
				Status:   types.StatusFailed,
				Err:      err,
				Error:    err.Error(),
				Started:  time.Now(),
				Finished: time.Now(),
			}
		} else {
			d.logger.Infof("Processing target %d/%d: %s", i+1, len(targets), target)
			result = d.runTarget(ctx, target)
		}

		d.logResult(result)
		if d.recorder != nil {
			if err := d.recorder.RecordResult(ctx, d.runID, result); err != nil {
				d.logger.Warnf("Failed to record outcome of %s: %v", target, err)
			}
		}
		summary.Results = append(summary.Results, result)
	}

	summary.Finished = time.Now()
	d.logger.Infof("Extraction completed in %v: %d succeeded, %d partial, %d failed",
		summary.Finished.Sub(summary.Started).Round(time.Millisecond),
		summary.Count(types.StatusSuccess), summary.Count(types.StatusPartial), summary.Count(types.StatusFailed))

	return summary, nil
}

// runTarget resets the session and extracts one target within TargetTimeout
func (d *Driver) runTarget(ctx context.Context, target types.Target) types.TargetResult {
	if d.config.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.TargetTimeout)
		defer cancel()
	}

	if err := d.session.Reset(ctx); err != nil {
		err = fmt.Errorf("failed to reset session: %w", err)
		return types.TargetResult{
			Target:   target,
			Status:   types.StatusFailed,
			Err:      err,
			Error:    err.Error(),
			Started:  time.Now(),
			Finished: time.Now(),
		}
	}

	return d.extractor.ExtractTarget(ctx, d.session, target)
}

func (d *Driver) logResult(result types.TargetResult) {
	elapsed := result.Finished.Sub(result.Started).Round(time.Millisecond)
	switch result.Status {
	case types.StatusSuccess:
		d.logger.Infof("%s: success, saved %d records from %d pages to %s in %v", result.Target, result.Records, result.Pages, result.Artifact, elapsed)
	case types.StatusPartial:
		d.logger.Warnf("%s: partial, saved %d records from %d pages to %s, then failed: %v", result.Target, result.Records, result.Pages, result.Artifact, result.Err)
	default:
		d.logger.Errorf("%s: failed: %v", result.Target, result.Err)
	}
}
