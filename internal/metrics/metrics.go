package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// RefreshRuns counts bulk refresh runs.
	RefreshRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_refresh_runs_total",
		Help: "Bulk dashboard refresh runs started.",
	})

	// AccountRefreshes counts per-account refreshes by outcome (ok, error).
	AccountRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_account_refreshes_total",
			Help: "Per-account dashboard refreshes by outcome.",
		},
		[]string{"outcome"},
	)

	// ItemsFetched counts items pulled from GitHub per listing.
	ItemsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_items_fetched_total",
			Help: "Items fetched from GitHub by listing.",
		},
		[]string{"listing"},
	)

	// PartialListings counts listings cut short by an upstream error or the page ceiling.
	PartialListings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_partial_listings_total",
			Help: "Listings that stopped early by reason.",
		},
		[]string{"listing", "reason"},
	)

	// WebhookEvents counts billing webhook deliveries by event type and result.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing webhook deliveries by event type and result.",
		},
		[]string{"type", "result"},
	)

	registerOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			RefreshRuns, AccountRefreshes, ItemsFetched, PartialListings, WebhookEvents,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge under a fixed route label.
func Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
