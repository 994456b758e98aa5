package observability

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/stream"
)

// Metrics holds the Prometheus collectors of the analytics server.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	EventsIngestedTotal    *prometheus.CounterVec
	IngestFailuresTotal    prometheus.Counter
	AggregateFailuresTotal *prometheus.CounterVec

	// Aggregate retention metrics
	AggregateEvictionsTotal *prometheus.CounterVec
	AggregatePrunedTotal    *prometheus.CounterVec

	// Live stream metrics
	LiveSubscribers             prometheus.Gauge
	LiveSubscribersDroppedTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_ingested_total",
				Help: "Total number of stored events",
			},
			[]string{"event_type"},
		),
		IngestFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_ingest_failures_total",
				Help: "Total number of events that could not be stored",
			},
		),
		AggregateFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_aggregate_failures_total",
				Help: "Total number of failed aggregate updates",
			},
			[]string{"aggregate"},
		),
		AggregateEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_aggregate_evictions_total",
				Help: "Total number of aggregate records evicted by the size bound",
			},
			[]string{"aggregate"},
		),
		AggregatePrunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_aggregate_pruned_total",
				Help: "Total number of idle aggregate records deleted",
			},
			[]string{"aggregate"},
		),
		LiveSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_live_subscribers",
				Help: "Number of connected live stream subscribers",
			},
		),
		LiveSubscribersDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_live_subscribers_dropped_total",
				Help: "Total number of live subscribers dropped for falling behind",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsIngestedTotal,
		m.IngestFailuresTotal,
		m.AggregateFailuresTotal,
		m.AggregateEvictionsTotal,
		m.AggregatePrunedTotal,
		m.LiveSubscribers,
		m.LiveSubscribersDroppedTotal,
	)

	return m
}

// EventIngested implements analytics.Recorder.
func (m *Metrics) EventIngested(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}

	m.EventsIngestedTotal.WithLabelValues(eventType).Inc()
}

// IngestFailed implements analytics.Recorder.
func (m *Metrics) IngestFailed() {
	m.IngestFailuresTotal.Inc()
}

// AggregateFailed implements analytics.Recorder.
func (m *Metrics) AggregateFailed(aggregate string) {
	m.AggregateFailuresTotal.WithLabelValues(aggregate).Inc()
}

// SubscribersChanged implements stream.Observer.
func (m *Metrics) SubscribersChanged(count int) {
	m.LiveSubscribers.Set(float64(count))
}

// SubscriberDropped implements stream.Observer.
func (m *Metrics) SubscriberDropped() {
	m.LiveSubscribersDroppedTotal.Inc()
}

// EvictionCounter returns an eviction callback for the named aggregate.
func (m *Metrics) EvictionCounter(aggregate string) func(key string) {
	counter := m.AggregateEvictionsTotal.WithLabelValues(aggregate)

	return func(string) { counter.Inc() }
}

// Pruned records idle records deleted from the named aggregate.
func (m *Metrics) Pruned(aggregate string, n int) {
	m.AggregatePrunedTotal.WithLabelValues(aggregate).Add(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection to WebSocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", rw.ResponseWriter)
	}

	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HTTPMetricsMiddleware instruments requests, labelled by chi route pattern.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

var (
	_ analytics.Recorder = (*Metrics)(nil)
	_ stream.Observer    = (*Metrics)(nil)
)
