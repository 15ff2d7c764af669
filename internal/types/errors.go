package types

import (
	"errors"
	"fmt"
)

// Extraction errors. Callers tell the failure modes apart with errors.Is.
var (
	// ErrSessionStart is returned when the browser cannot be launched,
	// e.g. no Chrome binary is installed.
	ErrSessionStart = errors.New("browser session could not be started")

	// ErrElementNotInteractable is returned when the price history trigger
	// did not become visible and enabled in time.
	ErrElementNotInteractable = errors.New("element not interactable")

	// ErrTableNotFound is returned when the table never appeared after the
	// trigger was clicked.
	ErrTableNotFound = errors.New("price history table not found")

	// ErrTableAbsent is returned by the extractor when a snapshot does not
	// contain the table yet. It is transient.
	ErrTableAbsent = errors.New("table absent from snapshot")

	// ErrNoHeader is returned when the table has no header row to capture.
	ErrNoHeader = errors.New("table has no header row")

	// ErrShapeMismatch is returned when a row's cell count differs from the
	// captured header.
	ErrShapeMismatch = errors.New("row does not match header")

	// ErrHeaderChanged is returned when a second, different header is set
	// for the same target.
	ErrHeaderChanged = errors.New("header already captured with different columns")

	// ErrStalePage is returned when advancing did not render a new page.
	ErrStalePage = errors.New("page did not change after advancing")
)

// Configuration errors returned by Config.Validate.
var (
	ErrNoBaseURL          = errors.New("invalid config: base url is required")
	ErrInvalidWaitTimeout = errors.New("invalid config: wait timeout must be positive")
	ErrInvalidSettleDelay = errors.New("invalid config: settle delays must be non-negative")
	ErrInvalidRetries     = errors.New("invalid config: retry counts must be non-negative")
	ErrMissingSelector    = errors.New("invalid config: trigger, table and next page selectors are required")
)

// SessionStartError aborts the whole run
type SessionStartError struct {
	Err error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSessionStart, e.Err)
}

func (e *SessionStartError) Unwrap() []error {
	return []error{ErrSessionStart, e.Err}
}

// NavigationError aborts one target before any record was extracted
type NavigationError struct {
	Target Target
	Step   string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation of %s failed at %s: %v", e.Target, e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ExtractionFailure is any unexpected condition inside a target's page loop
type ExtractionFailure struct {
	Target Target
	Page   int
	Err    error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction of %s failed on page %d: %v", e.Target, e.Page, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}
