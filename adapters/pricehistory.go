package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/utils"
)

// PriceHistoryAdapter knows the company page of the source site: where it
// lives, how to reveal its price history table and how to page through it.
type PriceHistoryAdapter struct {
	*BaseAdapter
}

// NewPriceHistoryAdapter creates a new price history adapter
func NewPriceHistoryAdapter(config *types.Config, logger types.Logger) *PriceHistoryAdapter {
	return &PriceHistoryAdapter{
		BaseAdapter: NewBaseAdapter(config, logger),
	}
}

// URL returns the company page of target
func (p *PriceHistoryAdapter) URL(target types.Target) string {
	return strings.TrimRight(p.config.BaseURL, "/") + "/company/" + url.PathEscape(string(target))
}

// Open navigates to the target's page and reveals the price history table.
// Each step waits at most Config.WaitTimeout. Failures are returned as
// *types.NavigationError and are not retried here.
func (p *PriceHistoryAdapter) Open(ctx context.Context, browser types.Browser, target types.Target) error {
	sel := p.config.Selectors
	timeout := p.config.WaitTimeout

	pageURL := p.URL(target)
	p.logger.Debugf("Opening %s", pageURL)
	if err := browser.Navigate(ctx, pageURL); err != nil {
		return &types.NavigationError{Target: target, Step: "navigate", Err: err}
	}

	if err := browser.WaitInteractable(ctx, sel.Trigger, timeout); err != nil {
		return &types.NavigationError{
			Target: target,
			Step:   "wait for trigger",
			Err:    fmt.Errorf("%w: %s: %w", types.ErrElementNotInteractable, sel.Trigger, err),
		}
	}

	if err := browser.Click(ctx, sel.Trigger); err != nil {
		return &types.NavigationError{
			Target: target,
			Step:   "click trigger",
			Err:    fmt.Errorf("%w: %s: %w", types.ErrElementNotInteractable, sel.Trigger, err),
		}
	}

	if err := browser.WaitPresent(ctx, sel.Table, timeout); err != nil {
		return &types.NavigationError{
			Target: target,
			Step:   "wait for table",
			Err:    fmt.Errorf("%w: %s: %w", types.ErrTableNotFound, sel.Table, err),
		}
	}

	return nil
}

// NextControl reports the state of the "next page" control
func (p *PriceHistoryAdapter) NextControl(ctx context.Context, browser types.Browser) (types.ControlState, error) {
	return browser.ControlState(ctx, p.config.Selectors.NextPage)
}

// AdvancePage activates the "next page" control
func (p *PriceHistoryAdapter) AdvancePage(ctx context.Context, browser types.Browser) error {
	return browser.ClickScript(ctx, p.config.Selectors.NextPage)
}

// ProbeReport describes which parts of the expected markup were found
type ProbeReport struct {
	Target          types.Target
	URL             string
	StaticTrigger   bool
	StaticTable     bool
	StaticErr       error
	Trigger         bool
	Table           bool
	Header          types.Header
	FirstPageRows   int
	CurrentPage     string
	NextPage        types.ControlState
	NavigationError error
}

// Healthy reports whether the live page could be opened and parsed
func (r ProbeReport) Healthy() bool {
	return r.NavigationError == nil && r.Trigger && r.Table && len(r.Header) > 0
}

// Probe checks the target's markup, first from the static HTML and then
// in the live browser, without writing any records.
func (p *PriceHistoryAdapter) Probe(ctx context.Context, client *utils.HTTPClient, browser types.Browser, target types.Target) ProbeReport {
	report := ProbeReport{Target: target, URL: p.URL(target)}

	if client != nil {
		body, err := client.Get(ctx, report.URL)
		if err != nil {
			report.StaticErr = err
		} else if doc, err := p.ParseHTML(string(body)); err != nil {
			report.StaticErr = err
		} else {
			report.StaticTrigger = doc.Find(p.config.Selectors.Trigger).Length() > 0
			report.StaticTable = doc.Find(p.config.Selectors.Table).Length() > 0
		}
	}

	if err := p.Open(ctx, browser, target); err != nil {
		report.NavigationError = err
		report.Trigger = errors.Is(err, types.ErrTableNotFound)
		return report
	}
	report.Trigger = true
	report.Table = true

	snapshot, err := browser.Snapshot(ctx)
	if err != nil {
		report.NavigationError = err
		return report
	}
	page, err := p.ExtractTable(snapshot, false)
	if err != nil {
		report.NavigationError = err
		return report
	}
	report.Header = page.Header
	report.FirstPageRows = len(page.Records)
	if doc, err := p.ParseHTML(string(snapshot)); err == nil {
		report.CurrentPage, _ = p.ExtractText(doc, p.config.Selectors.CurrentPage)
	}

	if state, err := p.NextControl(ctx, browser); err == nil {
		report.NextPage = state
	}
	return report
}
