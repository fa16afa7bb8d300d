package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// tokenNames are the anti-forgery field names tried, in order.
var tokenNames = []string{
	"__RequestVerificationToken",
	"csrf-token",
	"csrf_token",
	"_token",
	"authenticity_token",
}

// ScrapeFetcher reads the public search page. It needs no API key.
type ScrapeFetcher struct {
	client    *resty.Client
	searchURL string
	delay     time.Duration
	clock     clock.Clock
}

var _ Fetcher = (*ScrapeFetcher)(nil)

func NewScrapeFetcher(opts *options.UpstreamOptions, clk clock.Clock) *ScrapeFetcher {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ScrapeFetcher{
		client:    newBrowserSession(opts.Timeout),
		searchURL: opts.SearchURL,
		delay:     opts.PolitenessDelay,
		clock:     clk,
	}
}

func (f *ScrapeFetcher) Source() core.Source { return core.SourceScrape }

func (f *ScrapeFetcher) Close() error { return closeSession(f.client) }

// Fetch loads the search page for a token, waits the politeness delay and
// then submits the search for q.VIN.
func (f *ScrapeFetcher) Fetch(ctx context.Context, q core.VehicleQuery) (*core.RawRecord, error) {
	started := time.Now()

	resp, err := f.client.R().SetContext(ctx).Get(f.searchURL)
	observe(core.SourceScrape, resp, started)
	if err != nil {
		return nil, classify(err)
	}
	var name, token string
	if resp.StatusCode() == http.StatusOK {
		name, token = ExtractToken(resp.Body())
	}

	if err := f.wait(ctx); err != nil {
		return nil, classify(err)
	}

	req := f.client.R().
		SetContext(ctx).
		SetHeader("Referer", f.searchURL).
		SetQueryParam("vin", q.VIN)
	if token != "" {
		req.SetQueryParam(name, token)
	}
	resp, err = req.Get(f.searchURL)
	observe(core.SourceScrape, resp, started)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, core.HTTPError(resp.StatusCode())
	}

	return &core.RawRecord{
		Source: core.SourceScrape,
		HTML:   resp.Body(),
		Body:   resp.Body(),
	}, nil
}

func (f *ScrapeFetcher) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	t := f.clock.NewTimer(f.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// ExtractToken returns the first anti-forgery token found in page, looking
// at hidden inputs and meta tags. Both results are empty when none is present.
func ExtractToken(page []byte) (name, value string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", ""
	}
	for _, n := range tokenNames {
		if v := strings.TrimSpace(doc.Find(`input[name="`+n+`"]`).First().AttrOr("value", "")); v != "" {
			return n, v
		}
		if v := strings.TrimSpace(doc.Find(`meta[name="`+n+`"]`).First().AttrOr("content", "")); v != "" {
			return n, v
		}
	}
	return "", ""
}
