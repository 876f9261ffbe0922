package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	updates          *prometheus.CounterVec
	attachments      *prometheus.CounterVec
	historyRows      prometheus.Histogram
	degradedPayloads prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_updates_total",
			Help: "Saved ticket updates by the saga stage they reached.",
		}, []string{"stage"}),
		attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_attachments_total",
			Help: "Processed attachment files by outcome.",
		}, []string{"outcome"}),
		historyRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_history_rows",
			Help:    "Rows returned per history query.",
			Buckets: []float64{0, 10, 50, 100, 200, 500, 1000},
		}),
		degradedPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_log_payload_degraded_total",
			Help: "Log payloads that could not be decoded and were shown as raw text.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.errors, m.updates,
		m.attachments, m.historyRows, m.degradedPayloads,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordUpdate counts a saved update by the last stage it completed.
func (m *Metrics) RecordUpdate(stage string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(stage).Inc()
}

// RecordAttachment counts one processed file.
func (m *Metrics) RecordAttachment(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "stored"
	}
	m.attachments.WithLabelValues(outcome).Inc()
}

// RecordHistory observes the size of one history response and how many of
// its payloads were degraded.
func (m *Metrics) RecordHistory(rows, degraded int) {
	if m == nil {
		return
	}
	m.historyRows.Observe(float64(rows))
	if degraded > 0 {
		m.degradedPayloads.Add(float64(degraded))
	}
}
