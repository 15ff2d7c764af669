package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricehistory-extractor/adapters"
	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/store"
)

// PriceHistoryExtractor extracts the full price history of one target
type PriceHistoryExtractor struct {
	adapter *adapters.PriceHistoryAdapter
	logger  types.Logger
}

// NewPriceHistoryExtractor creates a new price history extractor
func NewPriceHistoryExtractor(config *types.Config, logger types.Logger) *PriceHistoryExtractor {
	return &PriceHistoryExtractor{
		adapter: adapters.NewPriceHistoryAdapter(config, logger),
		logger:  logger,
	}
}

// Adapter returns the site adapter used by the extractor
func (e *PriceHistoryExtractor) Adapter() *adapters.PriceHistoryAdapter {
	return e.adapter
}

// ExtractTarget opens target in browser, walks every page of its price
// history and writes what was collected. Whatever was extracted before a
// failure is still written; the result's status tells the cases apart.
func (e *PriceHistoryExtractor) ExtractTarget(ctx context.Context, browser types.Browser, target types.Target) (result types.TargetResult) {
	result = types.TargetResult{Target: target, Started: time.Now()}
	records := store.New(e.adapter.Config().OutputDir)
	paginator := NewPaginator(e.adapter, browser, e.logger)

	defer func() {
		if r := recover(); r != nil {
			paginator.Fail(&types.ExtractionFailure{
				Target: target,
				Page:   paginator.State().Page,
				Err:    fmt.Errorf("panic: %v", r),
			})
		}
		e.finish(&result, records, paginator.State())
	}()

	if err := e.adapter.Open(ctx, browser, target); err != nil {
		paginator.Fail(err)
		return result
	}

	for !paginator.State().Phase.Terminal() {
		e.extractOnePage(ctx, browser, target, paginator, records, &result)
	}

	return result
}

// extractOnePage runs one AwaitingData → HasMore/Exhausted → AwaitingData cycle
func (e *PriceHistoryExtractor) extractOnePage(ctx context.Context, browser types.Browser, target types.Target, paginator *Paginator, records *store.RecordStore, result *types.TargetResult) {
	pageNo := paginator.State().Page
	fail := func(err error) {
		paginator.Fail(&types.ExtractionFailure{Target: target, Page: pageNo, Err: err})
	}

	page, err := e.extractPage(ctx, browser, paginator, records.HasHeader())
	if err != nil {
		fail(err)
		return
	}

	if page.Header != nil {
		if err := records.SetHeader(page.Header); err != nil {
			fail(err)
			return
		}
	}
	if err := records.Append(page.Records...); err != nil {
		fail(err)
		return
	}
	result.Pages++
	paginator.Extracted(page.Marker)
	e.logger.Debugf("%s: page %d yielded %d records (%d total)", target, pageNo, len(page.Records), records.Len())

	if err := paginator.Observe(ctx); err != nil {
		fail(err)
		return
	}
	if paginator.State().Phase == Exhausted {
		return
	}
	if err := paginator.Advance(ctx); err != nil {
		fail(err)
	}
}

// extractPage snapshots and parses the current page. A table that has not
// rendered yet, or a page identical to the previous one, is retried after
// the settle delay up to MaxExtractRetries times.
func (e *PriceHistoryExtractor) extractPage(ctx context.Context, browser types.Browser, paginator *Paginator, headerCaptured bool) (types.Page, error) {
	config := e.adapter.Config()
	state := paginator.State()

	for attempt := 0; ; attempt++ {
		snapshot, err := browser.Snapshot(ctx)
		if err != nil {
			return types.Page{}, err
		}

		page, err := e.adapter.ExtractTable(snapshot, headerCaptured)
		switch {
		case errors.Is(err, types.ErrTableAbsent):
		case err != nil:
			return types.Page{}, err
		case state.Page > 1 && page.Marker != "" && page.Marker == state.PageMarker:
			err = types.ErrStalePage
		default:
			return page, nil
		}

		if attempt >= config.MaxExtractRetries {
			return types.Page{}, fmt.Errorf("%w (gave up after %d retries)", err, attempt)
		}
		e.logger.Debugf("Page %d not ready (%v), retrying in %v", state.Page, err, config.SettleDelay)
		if err := sleep(ctx, config.SettleDelay); err != nil {
			return types.Page{}, err
		}
	}
}

// finish flushes the collected records and fills in the result
func (e *PriceHistoryExtractor) finish(result *types.TargetResult, records *store.RecordStore, state PaginationState) {
	result.Records = records.Len()
	result.Err = state.Err

	if records.HasHeader() {
		path, err := records.Flush(result.Target)
		if err != nil {
			result.Err = errors.Join(result.Err, fmt.Errorf("failed to write records: %w", err))
		} else {
			result.Artifact = path
		}
	}

	switch {
	case result.Err == nil && state.Phase == Exhausted:
		result.Status = types.StatusSuccess
	case result.Artifact != "" && result.Records > 0:
		result.Status = types.StatusPartial
	default:
		result.Status = types.StatusFailed
	}
	if result.Err != nil {
		result.Error = result.Err.Error()
	}
	result.Finished = time.Now()
}
