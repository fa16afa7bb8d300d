package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every stkwatch collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// RefreshTotal counts refresh cycles by their outcome state
	// (updated, failed_with_cache, failed_without_cache).
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkwatch_refresh_total",
			Help: "Total number of refresh cycles by outcome.",
		},
		[]string{"outcome"},
	)

	// RefreshErrors counts failed cycles by error kind.
	RefreshErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkwatch_refresh_errors_total",
			Help: "Total number of failed refresh cycles by error kind.",
		},
		[]string{"kind"},
	)

	// UpstreamRequests counts upstream HTTP responses by strategy and status code.
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkwatch_upstream_requests_total",
			Help: "Upstream HTTP responses by strategy and status code.",
		},
		[]string{"strategy", "code"},
	)

	// FetchLatency records the duration of one fetch, including the politeness delay.
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stkwatch_fetch_duration_seconds",
			Help:    "Duration of upstream fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// DaysRemaining is the last known number of days until the inspection expires.
	DaysRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stkwatch_days_remaining",
			Help: "Days until the STK inspection expires, per vehicle.",
		},
		[]string{"vin"},
	)

	// Vehicles is the number of registered vehicles.
	Vehicles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stkwatch_vehicles",
			Help: "Number of tracked vehicles.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RefreshTotal,
		RefreshErrors,
		UpstreamRequests,
		FetchLatency,
		DaysRemaining,
		Vehicles,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
