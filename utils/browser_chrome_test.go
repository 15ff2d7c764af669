package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricehistory-extractor/internal/types"
)

const controlsPage = `<html><body>
<a id="visible" class="paginate_button next" onclick="document.body.dataset.clicked = 'yes'">Next</a>
<a id="hidden" class="paginate_button next" style="display:none">Next</a>
<a id="disabled" class="paginate_button next disabled">Next</a>
<script>
window.localStorage.setItem('k', 'v');
window.sessionStorage.setItem('k', 'v');
</script>
</body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/controls", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/", HttpOnly: true})
		w.Write([]byte(controlsPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p id="plain">plain</p></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// startChrome launches a real browser, skipping when none is installed
func startChrome(t *testing.T) *BrowserSession {
	t.Helper()
	if testing.Short() {
		t.Skip("launches a browser")
	}
	config := types.DefaultConfig()
	config.WaitTimeout = 15 * time.Second
	session := NewBrowserSession(config, quietLogger())
	if err := session.Start(context.Background()); err != nil {
		if errors.Is(err, types.ErrSessionStart) {
			t.Skipf("chrome not available: %v", err)
		}
		t.Fatal(err)
	}
	t.Cleanup(session.Teardown)
	return session
}

func evalString(t *testing.T, session *BrowserSession, expr string) string {
	t.Helper()
	var out string
	require.NoError(t, session.run(context.Background(), session.config.WaitTimeout, chromedp.Evaluate(expr, &out)))
	return out
}

func siteCookies(t *testing.T, session *BrowserSession, url string) []*network.Cookie {
	t.Helper()
	var cookies []*network.Cookie
	require.NoError(t, session.run(context.Background(), session.config.WaitTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithUrls([]string{url}).Do(ctx)
			return err
		})))
	return cookies
}

func TestBrowserSession_ControlStateAndClick(t *testing.T) {
	session := startChrome(t)
	server := newPageServer(t)
	ctx := context.Background()

	require.NoError(t, session.Reset(ctx))
	require.NoError(t, session.Navigate(ctx, server.URL+"/controls"))
	require.NoError(t, session.WaitPresent(ctx, "#visible", 5*time.Second))

	tests := []struct {
		selector string
		want     types.ControlState
	}{
		{selector: "#visible", want: types.ControlState{Present: true, Displayed: true, Enabled: true}},
		{selector: "#hidden", want: types.ControlState{Present: true, Displayed: false, Enabled: true}},
		{selector: "#disabled", want: types.ControlState{Present: true, Displayed: true, Enabled: false}},
		{selector: "#missing", want: types.ControlState{}},
	}
	for _, tt := range tests {
		state, err := session.ControlState(ctx, tt.selector)
		require.NoError(t, err, tt.selector)
		assert.Equal(t, tt.want, state, tt.selector)
	}

	assert.Error(t, session.ClickScript(ctx, "#missing"))
	require.NoError(t, session.ClickScript(ctx, "#visible"))
	assert.Equal(t, "yes", evalString(t, session, `document.body.dataset.clicked || ''`))
}

func TestBrowserSession_ResetDropsCookiesAndStorage(t *testing.T) {
	session := startChrome(t)
	server := newPageServer(t)
	ctx := context.Background()

	require.NoError(t, session.Reset(ctx))
	require.NoError(t, session.Navigate(ctx, server.URL+"/controls"))
	require.NoError(t, session.WaitPresent(ctx, "#visible", 5*time.Second))
	require.Equal(t, "v", evalString(t, session, `window.localStorage.getItem('k') || ''`))
	require.NotEmpty(t, siteCookies(t, session, server.URL))

	require.NoError(t, session.Reset(ctx))
	require.NoError(t, session.Navigate(ctx, server.URL+"/plain"))
	require.NoError(t, session.WaitPresent(ctx, "#plain", 5*time.Second))

	assert.Empty(t, evalString(t, session, `window.localStorage.getItem('k') || ''`))
	assert.Empty(t, evalString(t, session, `window.sessionStorage.getItem('k') || ''`))
	assert.Empty(t, siteCookies(t, session, server.URL))
}

func TestBrowserSession_ResetWithCancelledContext(t *testing.T) {
	session := startChrome(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, session.Reset(ctx), context.Canceled)
}

func TestBrowserSession_CommandsAfterTeardown(t *testing.T) {
	session := startChrome(t)
	require.NoError(t, session.Reset(context.Background()))

	session.Teardown()

	assert.Error(t, session.Navigate(context.Background(), "about:blank"))
}
