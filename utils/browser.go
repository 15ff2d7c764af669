package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"pricehistory-extractor/internal/types"
)

const controlStateScript = `(() => {
	const el = document.querySelector(%q);
	if (!el) return {present: false, displayed: false, enabled: false};
	const style = window.getComputedStyle(el);
	const displayed = el.getClientRects().length > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	const enabled = !el.hasAttribute('disabled') && !el.classList.contains('disabled') && el.getAttribute('aria-disabled') !== 'true';
	return {present: true, displayed: displayed, enabled: enabled};
})()`

const clickScript = `(() => {
	const el = document.querySelector(%q);
	if (!el) return false;
	el.click();
	return true;
})()`

var errSessionNotStarted = errors.New("browser session not started")

// BrowserSession owns the single headless browser used for a run.
// Each Reset moves it to a tab in a fresh browser context, so cookies and
// storage never carry over between targets. It is not safe for concurrent use.
type BrowserSession struct {
	config *types.Config
	logger types.Logger

	browserCtx  context.Context // first tab; owns the browser process
	ctx         context.Context // tab the commands run against
	tabCancel   context.CancelFunc
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

var _ types.Session = (*BrowserSession)(nil)

// NewBrowserSession creates a session; the browser is launched by Start
func NewBrowserSession(config *types.Config, logger types.Logger) *BrowserSession {
	return &BrowserSession{
		config: config,
		logger: logger,
	}
}

// Start launches the browser process
func (b *BrowserSession) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &types.SessionStartError{Err: err}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.config.UserAgent),
		chromedp.WindowSize(1366, 900),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	// chromedp's protocol chatter goes to our logger at debug level
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.logger.Debugf),
		chromedp.WithErrorf(b.logger.Debugf),
	)

	// Running with no actions forces the browser to start
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return &types.SessionStartError{Err: err}
	}

	b.browserCtx = browserCtx
	b.ctx = browserCtx
	b.cancel = cancel
	b.allocCancel = allocCancel
	b.logger.Debug("Browser session started")
	return nil
}

// Reset closes the current target's tab and opens a blank one in a new
// browser context. Cookies, storage and cache of the previous target are
// disposed with the old context.
func (b *BrowserSession) Reset(ctx context.Context) error {
	if b.browserCtx == nil {
		return errSessionNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.tabCancel != nil {
		b.tabCancel()
		b.tabCancel = nil
		b.ctx = b.browserCtx
	}

	// The tab must outlive ctx, so bound its creation with timers instead
	// of deriving it from ctx.
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	timer := time.AfterFunc(b.config.WaitTimeout, tabCancel)
	stop := context.AfterFunc(ctx, tabCancel)

	err := chromedp.Run(tabCtx)
	if !timer.Stop() || !stop() {
		err = errors.Join(err, fmt.Errorf("tab creation interrupted: %w", context.Cause(tabCtx)))
	}
	if err != nil {
		tabCancel()
		return fmt.Errorf("failed to open fresh tab: %w", err)
	}

	b.ctx = tabCtx
	b.tabCancel = tabCancel
	return nil
}

// Teardown releases the browser; later calls are no-ops
func (b *BrowserSession) Teardown() {
	b.closeOnce.Do(func() {
		if b.tabCancel != nil {
			b.tabCancel()
		}
		if b.cancel != nil {
			b.cancel()
		}
		if b.allocCancel != nil {
			b.allocCancel()
		}
		b.logger.Debug("Browser session closed")
	})
}

// Navigate loads url in the session's tab
func (b *BrowserSession) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, b.config.WaitTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// WaitInteractable waits until selector is visible and enabled
func (b *BrowserSession) WaitInteractable(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
}

// WaitPresent waits until selector is in the DOM
func (b *BrowserSession) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Click performs a native click on selector
func (b *BrowserSession) Click(ctx context.Context, selector string) error {
	return b.run(ctx, b.config.WaitTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickScript clicks selector from page script
func (b *BrowserSession) ClickScript(ctx context.Context, selector string) error {
	var clicked bool
	if err := b.run(ctx, b.config.WaitTimeout, chromedp.Evaluate(fmt.Sprintf(clickScript, selector), &clicked)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("failed to click %s: element not found", selector)
	}
	return nil
}

// ControlState reports whether selector exists, is displayed and is enabled
func (b *BrowserSession) ControlState(ctx context.Context, selector string) (types.ControlState, error) {
	var state types.ControlState
	err := b.run(ctx, b.config.WaitTimeout, chromedp.Evaluate(fmt.Sprintf(controlStateScript, selector), &state))
	if err != nil {
		return types.ControlState{}, fmt.Errorf("failed to inspect %s: %w", selector, err)
	}
	return state, nil
}

// Snapshot returns the rendered HTML of the current page
func (b *BrowserSession) Snapshot(ctx context.Context) (types.Snapshot, error) {
	var html string
	if err := b.run(ctx, b.config.WaitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	b.logger.Debugf("Captured page snapshot (%d bytes)", len(html))
	return types.Snapshot(html), nil
}

// run executes actions against the browser tab, bounded by timeout and
// cancelled early when the caller's ctx is done.
func (b *BrowserSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if b.ctx == nil {
		return errSessionNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
