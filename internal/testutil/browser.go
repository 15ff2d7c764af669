// Package testutil provides an in-memory browser and HTML fixtures so the
// pipeline can be exercised without launching Chrome.
package testutil

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"pricehistory-extractor/internal/types"
)

// Site is the scripted behaviour of one company page
type Site struct {
	// Pages are the rendered snapshots, one per pagination page
	Pages []string

	TriggerMissing bool
	TableMissing   bool

	// NextDisabledOnLast keeps the next control on the last page but
	// marks it disabled instead of removing it
	NextDisabledOnLast bool

	// FailSnapshotAt makes Snapshot fail on that page index (0-based)
	FailSnapshotAt int

	// Unrendered is how many blank snapshots a page returns before its table
	Unrendered map[int]int

	// StuckAt ignores the advance from that page index, rendering the same page again
	StuckAt int
}

// NewSite returns a site serving pages with no injected failures
func NewSite(pages ...string) *Site {
	return &Site{Pages: pages, FailSnapshotAt: -1, StuckAt: -1}
}

// Browser is a scripted types.Session
type Browser struct {
	mu sync.Mutex

	Sites    map[string]*Site
	StartErr error

	current  *Site
	revealed bool
	page     int
	blanks   map[int]int

	Starts    int
	Resets    int
	Teardowns int
	Navigated []string
	Snapshots int
	Advances  int
	Inspected int
}

var _ types.Session = (*Browser)(nil)

// NewBrowser creates a browser serving sites keyed by URL
func NewBrowser(sites map[string]*Site) *Browser {
	return &Browser{Sites: sites}
}

func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Starts++
	if b.StartErr != nil {
		return &types.SessionStartError{Err: b.StartErr}
	}
	return nil
}

func (b *Browser) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Resets++
	b.current = nil
	b.revealed = false
	b.page = 0
	return nil
}

func (b *Browser) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Teardowns++
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Navigated = append(b.Navigated, url)
	b.current = b.Sites[url]
	b.revealed = false
	b.page = 0
	b.blanks = map[int]int{}
	if b.current != nil {
		for page, n := range b.current.Unrendered {
			b.blanks[page] = n
		}
	}
	return nil
}

func (b *Browser) WaitInteractable(ctx context.Context, selector string, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.TriggerMissing {
		return context.DeadlineExceeded
	}
	return nil
}

func (b *Browser) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || !b.revealed || b.current.TableMissing {
		return context.DeadlineExceeded
	}
	return nil
}

func (b *Browser) Click(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return fmt.Errorf("no node for %s", selector)
	}
	b.revealed = true
	return nil
}

func (b *Browser) ClickScript(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Advances++
	if b.current == nil {
		return fmt.Errorf("no node for %s", selector)
	}
	if b.page == b.current.StuckAt {
		return nil
	}
	if b.page < len(b.current.Pages)-1 {
		b.page++
	}
	return nil
}

func (b *Browser) ControlState(ctx context.Context, selector string) (types.ControlState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Inspected++
	if b.current == nil {
		return types.ControlState{}, nil
	}
	if b.page < len(b.current.Pages)-1 {
		return types.ControlState{Present: true, Displayed: true, Enabled: true}, nil
	}
	if b.current.NextDisabledOnLast {
		return types.ControlState{Present: true, Displayed: true, Enabled: false}, nil
	}
	return types.ControlState{}, nil
}

func (b *Browser) Snapshot(ctx context.Context) (types.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Snapshots++
	if b.current == nil || !b.revealed {
		return "<html><body></body></html>", nil
	}
	if b.page == b.current.FailSnapshotAt {
		return "", fmt.Errorf("target closed while capturing page %d", b.page+1)
	}
	if b.blanks[b.page] > 0 {
		b.blanks[b.page]--
		return "<html><body><div class=\"loading\"></div></body></html>", nil
	}
	return types.Snapshot(b.current.Pages[b.page]), nil
}

// Page returns the index of the page currently rendered
func (b *Browser) Page() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

// PriceTable renders a price history page the way the source site does,
// with DataTables pagination markup when current > 0.
func PriceTable(header []string, rows [][]string, current int) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="dataTables_wrapper">`)
	sb.WriteString(`<table id="myTableCPriceHistory" class="table"><thead><tr>`)
	for _, h := range header {
		sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	sb.WriteString(`</tr></thead><tbody>`)
	if len(rows) == 0 {
		fmt.Fprintf(&sb, `<tr class="odd"><td valign="top" colspan="%d" class="dataTables_empty">No data available in table</td></tr>`, len(header))
	}
	for _, row := range rows {
		sb.WriteString(`<tr role="row">`)
		for _, cell := range row {
			sb.WriteString("<td> " + html.EscapeString(cell) + " </td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString(`</tbody></table>`)
	if current > 0 {
		fmt.Fprintf(&sb, `<div class="dataTables_paginate"><a class="paginate_button previous">Previous</a><span><a class="paginate_button current">%d</a></span><a class="paginate_button next">Next</a></div>`, current)
	}
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}

// QuietLogger returns a logrus logger that discards its output
func QuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// FastConfig returns the default configuration with delays shrunk for tests
func FastConfig(outputDir string) *types.Config {
	config := types.DefaultConfig()
	config.BaseURL = "https://prices.test"
	config.OutputDir = outputDir
	config.WaitTimeout = 50 * time.Millisecond
	config.SettleDelay = time.Millisecond
	config.PageSettleDelay = time.Millisecond
	config.TargetTimeout = 5 * time.Second
	config.RequestDelay = time.Millisecond
	return config
}
