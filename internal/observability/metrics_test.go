package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/visitor-analytics/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorder(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.EventIngested("page_load")
	m.EventIngested("page_load")
	m.EventIngested("")
	m.IngestFailed()
	m.AggregateFailed("session")

	assert.InDelta(t, 2, testutil.ToFloat64(m.EventsIngestedTotal.WithLabelValues("page_load")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsIngestedTotal.WithLabelValues("unknown")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IngestFailuresTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AggregateFailuresTotal.WithLabelValues("session")), 0)
}

func TestMetrics_Observer(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.SubscribersChanged(3)
	m.SubscriberDropped()
	m.SubscribersChanged(2)

	assert.InDelta(t, 2, testutil.ToFloat64(m.LiveSubscribers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LiveSubscribersDroppedTotal), 0)
}

func TestMetrics_Retention(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	evict := m.EvictionCounter("user")
	evict("u1")
	evict("u2")
	m.Pruned("session", 4)

	assert.InDelta(t, 2, testutil.ToFloat64(m.AggregateEvictionsTotal.WithLabelValues("user")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.AggregatePrunedTotal.WithLabelValues("session")), 0)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(registry)

	r := chi.NewRouter()
	r.Use(observability.HTTPMetricsMiddleware(m))
	r.Get("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", observability.Handler(registry))

	for _, path := range []string{"/api/items/1", "/api/items/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/items/{id}", "418")), 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "analytics_http_requests_total"))
}

func TestHTTPMetricsMiddleware_Hijack(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(observability.HTTPMetricsMiddleware(m))
	r.Get("/upgrade", func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "no hijacker", http.StatusInternalServerError)

			return
		}

		conn, buf, err := hj.Hijack()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
		defer conn.Close()

		_, _ = buf.WriteString("HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
		_ = buf.Flush()
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/upgrade")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
