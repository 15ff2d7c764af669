package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricehistory-extractor/internal/testutil"
	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/utils"
)

func newTestAdapter(t *testing.T) *PriceHistoryAdapter {
	t.Helper()
	return NewPriceHistoryAdapter(testutil.FastConfig(t.TempDir()), testutil.QuietLogger())
}

func TestPriceHistoryAdapter_URL(t *testing.T) {
	adapter := newTestAdapter(t)
	adapter.config.BaseURL = "https://prices.test/"

	assert.Equal(t, "https://prices.test/company/NABIL", adapter.URL("NABIL"))
	assert.Equal(t, "https://prices.test/company/A%2FB", adapter.URL("A/B"))
}

func TestOpen_Success(t *testing.T) {
	adapter := newTestAdapter(t)
	site := testutil.NewSite(testutil.PriceTable(priceHeader, priceRows(), 1))
	browser := testutil.NewBrowser(map[string]*testutil.Site{adapter.URL("NABIL"): site})

	err := adapter.Open(context.Background(), browser, "NABIL")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://prices.test/company/NABIL"}, browser.Navigated)
}

func TestOpen_TriggerTimeout(t *testing.T) {
	adapter := newTestAdapter(t)
	site := testutil.NewSite(testutil.PriceTable(priceHeader, priceRows(), 1))
	site.TriggerMissing = true
	browser := testutil.NewBrowser(map[string]*testutil.Site{adapter.URL("NABIL"): site})

	err := adapter.Open(context.Background(), browser, "NABIL")

	var navErr *types.NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, types.Target("NABIL"), navErr.Target)
	assert.ErrorIs(t, err, types.ErrElementNotInteractable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, types.ErrTableNotFound)
}

func TestOpen_TableTimeout(t *testing.T) {
	adapter := newTestAdapter(t)
	site := testutil.NewSite(testutil.PriceTable(priceHeader, priceRows(), 1))
	site.TableMissing = true
	browser := testutil.NewBrowser(map[string]*testutil.Site{adapter.URL("NABIL"): site})

	err := adapter.Open(context.Background(), browser, "NABIL")

	var navErr *types.NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, "wait for table", navErr.Step)
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestNextControlAndAdvance(t *testing.T) {
	adapter := newTestAdapter(t)
	site := testutil.NewSite(
		testutil.PriceTable(priceHeader, priceRows()[:1], 1),
		testutil.PriceTable(priceHeader, priceRows()[1:], 2),
	)
	browser := testutil.NewBrowser(map[string]*testutil.Site{adapter.URL("CBBL"): site})
	ctx := context.Background()
	require.NoError(t, adapter.Open(ctx, browser, "CBBL"))

	state, err := adapter.NextControl(ctx, browser)
	require.NoError(t, err)
	assert.True(t, state.Usable())

	require.NoError(t, adapter.AdvancePage(ctx, browser))
	assert.Equal(t, 1, browser.Page())

	state, err = adapter.NextControl(ctx, browser)
	require.NoError(t, err)
	assert.False(t, state.Usable())
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><button id="btn_cpricehistory">Price History</button></body></html>`))
	}))
	defer server.Close()

	config := testutil.FastConfig(t.TempDir())
	config.BaseURL = server.URL
	adapter := NewPriceHistoryAdapter(config, testutil.QuietLogger())
	client := utils.NewHTTPClient(config, testutil.QuietLogger())
	defer client.Close()

	site := testutil.NewSite(
		testutil.PriceTable(priceHeader, priceRows(), 1),
		testutil.PriceTable(priceHeader, priceRows(), 2),
	)
	browser := testutil.NewBrowser(map[string]*testutil.Site{adapter.URL("SADBL"): site})

	report := adapter.Probe(context.Background(), client, browser, "SADBL")

	assert.NoError(t, report.StaticErr)
	assert.True(t, report.StaticTrigger)
	assert.False(t, report.StaticTable)
	assert.True(t, report.Healthy())
	assert.Equal(t, types.Header(priceHeader), report.Header)
	assert.Equal(t, 2, report.FirstPageRows)
	assert.Equal(t, "1", report.CurrentPage)
	assert.True(t, report.NextPage.Usable())
}

func TestProbe_MissingTrigger(t *testing.T) {
	adapter := newTestAdapter(t)
	browser := testutil.NewBrowser(nil)

	report := adapter.Probe(context.Background(), nil, browser, "GONE")

	assert.False(t, report.Healthy())
	assert.False(t, report.Trigger)
	assert.ErrorIs(t, report.NavigationError, types.ErrElementNotInteractable)
}
