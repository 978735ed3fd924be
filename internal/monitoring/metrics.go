// Package monitoring exposes scheduler counters in Prometheus format.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warmup_scheduler"

// Metrics holds the scheduler's collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Capacity decisions
	DecisionsTotal *prometheus.CounterVec

	// Sends
	SendsTotal *prometheus.CounterVec

	// Selection and distribution
	SelectionsTotal *prometheus.CounterVec

	// Warm-up sweeps
	SweepsTotal  prometheus.Counter
	SweptRecords prometheus.Counter
}

// NewMetrics registers every collector with reg. A nil reg gets a fresh
// registry so tests and multiple instances never collide on the default one.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		DecisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capacity_decisions_total",
				Help:      "Capacity checks by outcome and denial reason",
			},
			[]string{"allowed", "reason"},
		),

		SendsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_recorded_total",
				Help:      "Sends recorded against identities",
			},
			[]string{"result"},
		),

		SelectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Identity selections and batch distributions by result code",
			},
			[]string{"operation", "code"},
		),

		SweepsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_sweeps_total",
				Help:      "Completed warm-up rollover sweeps",
			},
		),

		SweptRecords: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_swept_records_total",
				Help:      "Warm-up records visited by rollover sweeps",
			},
		),
	}
}

// ObserveDecision counts one capacity check. Allowed checks carry an empty
// reason.
func (m *Metrics) ObserveDecision(reason string, allowed bool) {
	if allowed {
		reason = "none"
	}
	m.DecisionsTotal.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

// ObserveSend counts one RecordSend call.
func (m *Metrics) ObserveSend(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SendsTotal.WithLabelValues(result).Inc()
}

// ObserveSelection counts one selection or distribution. code is "ok" on
// success or the failure code otherwise.
func (m *Metrics) ObserveSelection(operation, code string) {
	m.SelectionsTotal.WithLabelValues(operation, code).Inc()
}

// ObserveSweep counts one rollover sweep over n records.
func (m *Metrics) ObserveSweep(n int) {
	m.SweepsTotal.Inc()
	m.SweptRecords.Add(float64(n))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// HTTPHandler serves the registry in the Prometheus text format.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
