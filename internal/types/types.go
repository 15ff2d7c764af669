package types

import (
	"context"
	"time"
)

// Target is the symbol of one company whose price history is extracted
type Target string

// Header is the ordered column names of a price history table
type Header []string

// Record is one table row, one cell per header column
type Record []string

// Snapshot is the rendered HTML of the page at one instant
type Snapshot string

// Page is what the table extractor parsed out of one snapshot.
// Header is nil unless it was requested; Marker identifies which
// pagination page was rendered.
type Page struct {
	Header  Header
	Records []Record
	Marker  string
}

// ControlState describes a page control as the browser sees it
type ControlState struct {
	Present   bool `json:"present"`
	Displayed bool `json:"displayed"`
	Enabled   bool `json:"enabled"`
}

// Usable reports whether the control can be activated
func (c ControlState) Usable() bool {
	return c.Present && c.Displayed && c.Enabled
}

// Status is the outcome of one target
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// TargetResult is the per-target outcome reported by the driver
type TargetResult struct {
	Target   Target    `json:"target"`
	Status   Status    `json:"status"`
	Pages    int       `json:"pages"`
	Records  int       `json:"records"`
	Artifact string    `json:"artifact,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Err error `json:"-"`
}

// RunSummary collects the results of one pipeline run
type RunSummary struct {
	Results  []TargetResult `json:"results"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
}

// Failed reports whether any target did not fully succeed
func (r RunSummary) Failed() bool {
	for _, res := range r.Results {
		if res.Status != StatusSuccess {
			return true
		}
	}
	return false
}

// Count returns how many targets ended with the given status
func (r RunSummary) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Selectors are the CSS selectors of the source site's markup
type Selectors struct {
	Trigger     string `yaml:"trigger"`
	Table       string `yaml:"table"`
	NextPage    string `yaml:"next_page"`
	CurrentPage string `yaml:"current_page"`
}

// Config holds the configuration for the extractor
type Config struct {
	BaseURL   string    `yaml:"base_url"`
	OutputDir string    `yaml:"output_dir"`
	Symbols   []string  `yaml:"symbols"`
	Selectors Selectors `yaml:"selectors"`

	WaitTimeout        time.Duration `yaml:"wait_timeout"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	PageSettleDelay    time.Duration `yaml:"page_settle_delay"`
	TargetTimeout      time.Duration `yaml:"target_timeout"`
	MaxExtractRetries  int           `yaml:"max_extract_retries"`
	ExhaustionRechecks int           `yaml:"exhaustion_rechecks"`

	RequestDelay time.Duration `yaml:"request_delay"`
	MaxRetries   int           `yaml:"max_retries"`

	Headless     bool   `yaml:"headless"`
	UserAgent    string `yaml:"user_agent"`
	DatabasePath string `yaml:"database_path"`
}

// DefaultSymbols are extracted when no symbols are given
var DefaultSymbols = []string{"CBBL", "NABIL", "SADBL"}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://www.sharesansar.com",
		OutputDir: ".",
		Selectors: Selectors{
			Trigger:     "#btn_cpricehistory",
			Table:       "#myTableCPriceHistory",
			NextPage:    "a.paginate_button.next",
			CurrentPage: "a.paginate_button.current",
		},
		WaitTimeout:        10 * time.Second,
		SettleDelay:        2 * time.Second,
		PageSettleDelay:    3 * time.Second,
		TargetTimeout:      15 * time.Minute,
		MaxExtractRetries:  3,
		ExhaustionRechecks: 1,
		RequestDelay:       1 * time.Second,
		MaxRetries:         3,
		Headless:           true,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return ErrNoBaseURL
	case c.WaitTimeout <= 0:
		return ErrInvalidWaitTimeout
	case c.SettleDelay < 0 || c.PageSettleDelay < 0:
		return ErrInvalidSettleDelay
	case c.MaxExtractRetries < 0 || c.ExhaustionRechecks < 0:
		return ErrInvalidRetries
	case c.Selectors.Trigger == "" || c.Selectors.Table == "" || c.Selectors.NextPage == "":
		return ErrMissingSelector
	}
	return nil
}

// Browser is the set of commands the pipeline issues against the live
// browsing session. Every wait is bounded by the given timeout.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitInteractable(ctx context.Context, selector string, timeout time.Duration) error
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// ClickScript clicks through script execution so overlays cannot intercept it
	ClickScript(ctx context.Context, selector string) error
	ControlState(ctx context.Context, selector string) (ControlState, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Session is a Browser whose lifecycle the driver owns
type Session interface {
	Browser
	Start(ctx context.Context) error
	Reset(ctx context.Context) error
	Teardown()
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
