package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

const searchPage = `<html><head><meta name="csrf-token" content="meta-token"></head>
<body><form><input type="hidden" name="__RequestVerificationToken" value="form-token"></form></body></html>`

const resultPage = `<html><body><table>
<tr><th>VIN</th><td>TMBJJ7NE8L0123456</td></tr>
<tr><th>Tovární značka</th><td>ŠKODA</td></tr>
</table></body></html>`

func searchServer(t *testing.T, resultStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("vin") == "" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			_, _ = w.Write([]byte(searchPage))
			return
		}
		assert.Equal(t, "form-token", q.Get("__RequestVerificationToken"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		assert.Contains(t, r.Header.Get("Accept-Language"), "cs-CZ")
		c, err := r.Cookie("session")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", c.Value)
		}
		w.WriteHeader(resultStatus)
		_, _ = w.Write([]byte(resultPage))
	}))
}

func scrapeOptions(url string, delay time.Duration) *options.UpstreamOptions {
	opts := options.NewUpstreamOptions()
	opts.Strategy = options.StrategyScrape
	opts.SearchURL = url
	opts.PolitenessDelay = delay
	opts.Timeout = 2 * time.Second
	return opts
}

func TestScrapeFetcher(t *testing.T) {
	srv := searchServer(t, http.StatusOK)
	defer srv.Close()

	f := NewScrapeFetcher(scrapeOptions(srv.URL, 0), nil)
	defer f.Close()

	// No key required.
	rec, err := f.Fetch(context.Background(), mustQuery(t, ""))
	require.NoError(t, err)
	assert.Equal(t, core.SourceScrape, rec.Source)
	assert.Contains(t, string(rec.HTML), "ŠKODA")
}

func TestScrapeFetcherHTTPError(t *testing.T) {
	srv := searchServer(t, http.StatusServiceUnavailable)
	defer srv.Close()

	f := NewScrapeFetcher(scrapeOptions(srv.URL, 0), nil)
	defer f.Close()

	_, err := f.Fetch(context.Background(), mustQuery(t, ""))
	require.Error(t, err)
	e, ok := core.AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindHTTP, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode)
}

func TestScrapeFetcherWaitsPolitenessDelay(t *testing.T) {
	srv := searchServer(t, http.StatusOK)
	defer srv.Close()

	fakeClock := testingclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	f := NewScrapeFetcher(scrapeOptions(srv.URL, time.Second), fakeClock)
	defer f.Close()

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), mustQuery(t, ""))
		done <- err
	}()

	require.Eventually(t, fakeClock.HasWaiters, 2*time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("search submitted before the politeness delay elapsed")
	default:
	}

	fakeClock.Step(time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not resume after the delay")
	}
}

func TestScrapeFetcherCancelledDuringDelay(t *testing.T) {
	srv := searchServer(t, http.StatusOK)
	defer srv.Close()

	fakeClock := testingclock.NewFakeClock(time.Now())
	f := NewScrapeFetcher(scrapeOptions(srv.URL, time.Minute), fakeClock)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, mustQuery(t, ""))
		done <- err
	}()

	require.Eventually(t, fakeClock.HasWaiters, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch ignored cancellation")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantName  string
		wantValue string
	}{
		{name: "form input wins by name order", page: searchPage, wantName: "__RequestVerificationToken", wantValue: "form-token"},
		{name: "meta tag", page: `<meta name="csrf-token" content="m1">`, wantName: "csrf-token", wantValue: "m1"},
		{name: "rails", page: `<input name="authenticity_token" value=" r1 ">`, wantName: "authenticity_token", wantValue: "r1"},
		{name: "laravel", page: `<input type="hidden" value="l1" name="_token">`, wantName: "_token", wantValue: "l1"},
		{name: "empty value skipped", page: `<input name="csrf_token" value=""><input name="_token" value="x">`, wantName: "_token", wantValue: "x"},
		{name: "absent", page: `<form><input name="q"></form>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, value := ExtractToken([]byte(tt.page))
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
