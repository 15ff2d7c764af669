package adapters

import (
	"fmt"
	"strconv"
	"strings"

	"pricehistory-extractor/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// BaseAdapter provides the HTML parsing shared by site adapters. Nothing
// here touches the browser, so it can be tested against fixed fixtures.
type BaseAdapter struct {
	config *types.Config // Selectors, timeouts and delays
	logger types.Logger  // Structured logging interface
}

// NewBaseAdapter creates a new base adapter
func NewBaseAdapter(config *types.Config, logger types.Logger) *BaseAdapter {
	return &BaseAdapter{
		config: config,
		logger: logger,
	}
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractTable parses the price history table out of a snapshot.
//
// The header is read only when headerCaptured is false. Body rows become
// records of trimmed cell text; rows without cells and the "no data"
// placeholder row are dropped. A snapshot taken before the table was
// rendered yields types.ErrTableAbsent, which callers may retry.
func (b *BaseAdapter) ExtractTable(snapshot types.Snapshot, headerCaptured bool) (types.Page, error) {
	doc, err := b.ParseHTML(string(snapshot))
	if err != nil {
		return types.Page{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	table := doc.Find(b.config.Selectors.Table).First()
	if table.Length() == 0 {
		return types.Page{}, types.ErrTableAbsent
	}

	var page types.Page

	if !headerCaptured {
		var header types.Header
		table.Find("thead tr").First().Find("th, td").Each(func(i int, s *goquery.Selection) {
			header = append(header, strings.TrimSpace(s.Text()))
		})
		if len(header) == 0 {
			return types.Page{}, types.ErrNoHeader
		}
		page.Header = header
	}

	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 || isPlaceholderRow(cells) {
			return
		}

		record := make(types.Record, 0, cells.Length())
		cells.Each(func(j int, cell *goquery.Selection) {
			record = append(record, strings.TrimSpace(cell.Text()))
		})
		page.Records = append(page.Records, record)
	})

	page.Marker = b.pageMarker(doc, page.Records)
	return page, nil
}

// pageMarker identifies the rendered page by the active pagination label,
// when the site shows one, and the first row.
func (b *BaseAdapter) pageMarker(doc *goquery.Document, records []types.Record) string {
	var parts []string
	if sel := b.config.Selectors.CurrentPage; sel != "" {
		if label, err := b.ExtractText(doc, sel); err == nil && label != "" {
			parts = append(parts, "page:"+label)
		}
	}
	if len(records) > 0 {
		parts = append(parts, "rows:"+strconv.Itoa(len(records))+":"+strings.Join(records[0], "\x1f"))
	}
	return strings.Join(parts, "|")
}

// isPlaceholderRow matches the single cell DataTables renders for an empty table
func isPlaceholderRow(cells *goquery.Selection) bool {
	return cells.Length() == 1 && cells.First().HasClass("dataTables_empty")
}

// ExtractText extracts text from an element using a CSS selector
func (b *BaseAdapter) ExtractText(doc *goquery.Document, selector string) (string, error) {
	element := doc.Find(selector)
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	return strings.TrimSpace(element.First().Text()), nil
}

// Config returns the config field of the BaseAdapter
func (b *BaseAdapter) Config() *types.Config {
	return b.config
}
