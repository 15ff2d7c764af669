package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricehistory-extractor/internal/testutil"
	"pricehistory-extractor/internal/types"
)

type memoryRecorder struct {
	runID   int64
	results []types.TargetResult
	err     error
}

func (m *memoryRecorder) RecordResult(ctx context.Context, runID int64, result types.TargetResult) error {
	m.runID = runID
	m.results = append(m.results, result)
	return m.err
}

func newTestDriver(t *testing.T, sites func(e *PriceHistoryExtractor) map[string]*testutil.Site, opts ...DriverOption) (*Driver, *testutil.Browser, *types.Config) {
	t.Helper()
	config := testutil.FastConfig(t.TempDir())
	browser := testutil.NewBrowser(nil)
	driver := NewDriver(config, browser, testutil.QuietLogger(), opts...)
	browser.Sites = sites(driver.extractor)
	return driver, browser, config
}

func TestDriver_EndToEnd(t *testing.T) {
	driver, browser, config := newTestDriver(t, func(e *PriceHistoryExtractor) map[string]*testutil.Site {
		b := testutil.NewSite(testutil.PriceTable(testHeader, nil, 1))
		b.TriggerMissing = true
		return map[string]*testutil.Site{
			e.Adapter().URL("A"): testutil.NewSite(testutil.PriceTable(testHeader, [][]string{
				{"2024-01-01", "100"},
				{"2024-01-02", "101"},
			}, 1)),
			e.Adapter().URL("B"): b,
		}
	})

	summary, err := driver.Run(context.Background(), []types.Target{"A", "B"})

	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.True(t, summary.Failed())

	a := summary.Results[0]
	assert.Equal(t, types.StatusSuccess, a.Status)
	assert.Equal(t, [][]string{
		{"Date", "Ltp"},
		{"2024-01-01", "100"},
		{"2024-01-02", "101"},
	}, readArtifact(t, a.Artifact))

	b := summary.Results[1]
	assert.Equal(t, types.StatusFailed, b.Status)
	assert.ErrorIs(t, b.Err, types.ErrElementNotInteractable)
	assert.NoFileExists(t, filepath.Join(config.OutputDir, "B_price_history.csv"))

	assert.Equal(t, 1, browser.Starts)
	assert.Equal(t, 2, browser.Resets)
	assert.Equal(t, 1, browser.Teardowns)
}

func TestDriver_FailureDoesNotAbortBatch(t *testing.T) {
	driver, _, _ := newTestDriver(t, func(e *PriceHistoryExtractor) map[string]*testutil.Site {
		broken := testutil.NewSite(threePages()...)
		broken.TableMissing = true
		return map[string]*testutil.Site{
			e.Adapter().URL("BROKEN"): broken,
			e.Adapter().URL("OK"):     testutil.NewSite(threePages()...),
		}
	})

	summary, err := driver.Run(context.Background(), []types.Target{"BROKEN", "MISSING", "OK"})

	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.ErrorIs(t, summary.Results[0].Err, types.ErrTableNotFound)
	assert.Equal(t, types.StatusFailed, summary.Results[1].Status)
	assert.Equal(t, types.StatusSuccess, summary.Results[2].Status)
	assert.Equal(t, 3, summary.Results[2].Records)
	assert.Equal(t, 1, summary.Count(types.StatusSuccess))
	assert.Equal(t, 2, summary.Count(types.StatusFailed))
}

func TestDriver_SessionStartFailure(t *testing.T) {
	driver, browser, _ := newTestDriver(t, func(e *PriceHistoryExtractor) map[string]*testutil.Site { return nil })
	browser.StartErr = errors.New("exec: \"google-chrome\": executable file not found in $PATH")

	summary, err := driver.Run(context.Background(), []types.Target{"A"})

	var startErr *types.SessionStartError
	require.True(t, errors.As(err, &startErr))
	assert.ErrorIs(t, err, types.ErrSessionStart)
	assert.Empty(t, summary.Results)
	assert.Equal(t, 0, browser.Resets)
	assert.Equal(t, 1, browser.Teardowns)
}

func TestDriver_CancelledRunFailsRemainingTargets(t *testing.T) {
	driver, browser, _ := newTestDriver(t, func(e *PriceHistoryExtractor) map[string]*testutil.Site { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := driver.Run(ctx, []types.Target{"A", "B"})

	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, result := range summary.Results {
		assert.Equal(t, types.StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, context.Canceled)
	}
	assert.Equal(t, 0, browser.Resets)
	assert.Equal(t, 1, browser.Teardowns)
}

func TestDriver_RecordsEveryOutcome(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("disk full")}
	driver, _, _ := newTestDriver(t, func(e *PriceHistoryExtractor) map[string]*testutil.Site {
		return map[string]*testutil.Site{e.Adapter().URL("A"): testutil.NewSite(threePages()...)}
	}, WithRecorder(recorder, 7))

	summary, err := driver.Run(context.Background(), []types.Target{"A", "B"})

	require.NoError(t, err)
	assert.Equal(t, int64(7), recorder.runID)
	require.Len(t, recorder.results, 2)
	assert.Equal(t, summary.Results, recorder.results)
	assert.Equal(t, types.StatusSuccess, recorder.results[0].Status)
	assert.Equal(t, types.StatusFailed, recorder.results[1].Status)
}
