package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/repo-dashboard/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestInstrumentRecordsStatus verifies the wrapped handler's status is used as a label
func TestInstrumentRecordsStatus(t *testing.T) {
	metrics.Init()
	metrics.Init()

	h := metrics.Instrument("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/teapot",status="418"} 1`)
}

// TestWebhookCounter verifies labelled counters are usable after Init
func TestWebhookCounter(t *testing.T) {
	metrics.Init()
	before := testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues("test.event", "ignored"))
	metrics.WebhookEvents.WithLabelValues("test.event", "ignored").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues("test.event", "ignored")))
}
