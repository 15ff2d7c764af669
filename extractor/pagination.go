package extractor

import (
	"context"
	"fmt"
	"time"

	"pricehistory-extractor/adapters"
	"pricehistory-extractor/internal/types"
)

// Phase is the state of a target's pagination
type Phase int

const (
	// AwaitingData means a page is rendered and waiting to be extracted
	AwaitingData Phase = iota
	// HasMore means the page was extracted and a next page exists
	HasMore
	// Exhausted means the last page was extracted
	Exhausted
	// Failed means the target was aborted
	Failed
)

// String returns a human-readable name of the phase
func (p Phase) String() string {
	switch p {
	case AwaitingData:
		return "awaiting data"
	case HasMore:
		return "has more"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (p Phase) Terminal() bool {
	return p == Exhausted || p == Failed
}

// PaginationState is the paginator's view of the table
type PaginationState struct {
	Phase      Phase
	HasNext    bool
	PageMarker string
	Page       int
	Err        error
}

// Paginator walks a target's table page by page. It only decides whether
// another page exists and moves to it; extraction happens in between.
type Paginator struct {
	adapter *adapters.PriceHistoryAdapter
	browser types.Browser
	config  *types.Config
	logger  types.Logger
	state   PaginationState
}

// NewPaginator creates a paginator positioned on the first page
func NewPaginator(adapter *adapters.PriceHistoryAdapter, browser types.Browser, logger types.Logger) *Paginator {
	return &Paginator{
		adapter: adapter,
		browser: browser,
		config:  adapter.Config(),
		logger:  logger,
		state:   PaginationState{Phase: AwaitingData, Page: 1},
	}
}

// State returns the current pagination state
func (p *Paginator) State() PaginationState {
	return p.state
}

// Extracted records the marker of the page that was just extracted
func (p *Paginator) Extracted(marker string) {
	p.state.PageMarker = marker
}

// Observe inspects the next page control after an extraction and moves to
// HasMore or Exhausted. A missing or disabled control is re-checked
// ExhaustionRechecks times, SettleDelay apart, before the table is
// considered exhausted, so a control caught mid-render does not cut the
// history short.
func (p *Paginator) Observe(ctx context.Context) error {
	if p.state.Phase != AwaitingData {
		return fmt.Errorf("cannot observe pagination in phase %s", p.state.Phase)
	}

	for check := 0; ; check++ {
		state, err := p.adapter.NextControl(ctx, p.browser)
		if err != nil {
			return p.Fail(fmt.Errorf("failed to inspect next page control: %w", err))
		}
		if state.Usable() {
			p.state.HasNext = true
			p.state.Phase = HasMore
			return nil
		}
		if check >= p.config.ExhaustionRechecks {
			break
		}
		p.logger.Debugf("Next page control unusable on page %d (%+v), re-checking", p.state.Page, state)
		if err := sleep(ctx, p.config.SettleDelay); err != nil {
			return p.Fail(err)
		}
	}

	p.state.HasNext = false
	p.state.Phase = Exhausted
	return nil
}

// Advance activates the next page control and waits for the page to settle
func (p *Paginator) Advance(ctx context.Context) error {
	if p.state.Phase != HasMore {
		return fmt.Errorf("cannot advance pagination in phase %s", p.state.Phase)
	}

	if err := p.adapter.AdvancePage(ctx, p.browser); err != nil {
		return p.Fail(fmt.Errorf("failed to advance from page %d: %w", p.state.Page, err))
	}
	if err := sleep(ctx, p.config.PageSettleDelay); err != nil {
		return p.Fail(err)
	}

	p.state.Page++
	p.state.HasNext = false
	p.state.Phase = AwaitingData
	return nil
}

// Fail moves the paginator to Failed and returns err
func (p *Paginator) Fail(err error) error {
	p.state.Phase = Failed
	p.state.HasNext = false
	p.state.Err = err
	return err
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
