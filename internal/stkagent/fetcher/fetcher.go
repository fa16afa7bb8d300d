// Package fetcher retrieves raw vehicle records from the Czech vehicle
// register, either through the keyed JSON API or by scraping the public
// search page.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/stkwatch/internal/pkg/metrics"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// Fetcher performs one upstream retrieval for a vehicle.
type Fetcher interface {
	Source() core.Source
	Fetch(ctx context.Context, q core.VehicleQuery) (*core.RawRecord, error)
	// Close releases the underlying HTTP session.
	Close() error
}

// New returns the fetcher selected by opts.Strategy.
func New(opts *options.UpstreamOptions, clk clock.Clock) (Fetcher, error) {
	switch opts.Strategy {
	case options.StrategyAPI:
		return NewAPIFetcher(opts), nil
	case options.StrategyScrape:
		return NewScrapeFetcher(opts, clk), nil
	default:
		return nil, fmt.Errorf("unknown upstream strategy %q", opts.Strategy)
	}
}

// classify maps a failed request to a core error kind.
func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return core.WrapError(core.KindTimeout, err, "upstream request timed out")
	}
	return core.WrapError(core.KindTransport, err, "upstream request failed")
}

func observe(source core.Source, resp *resty.Response, started time.Time) {
	metrics.FetchLatency.WithLabelValues(string(source)).Observe(time.Since(started).Seconds())
	if resp != nil {
		metrics.UpstreamRequests.WithLabelValues(string(source), strconv.Itoa(resp.StatusCode())).Inc()
	}
}

func closeSession(c *resty.Client) error {
	c.GetClient().CloseIdleConnections()
	return nil
}
