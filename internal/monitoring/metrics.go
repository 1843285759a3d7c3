// Package monitoring exposes Prometheus metrics for the panic button
// service: action outcomes and latency, rejected keys and HTTP traffic.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActionTotal      *prometheus.CounterVec   // action=lock|verify, mode=mock|real, result=ok|nok|launch_failed
	ActionDurationMS *prometheus.HistogramVec // action, mode
	AuthRejected     *prometheus.CounterVec   // action
	RequestsTotal    *prometheus.CounterVec   // method, route, code
}

// NewMetrics creates the collectors on a private registry, so tests can
// build as many instances as they like.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ActionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panicbutton_action_total",
				Help: "Actions performed by kind, mode and result",
			},
			[]string{"action", "mode", "result"},
		),
		ActionDurationMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panicbutton_action_duration_ms",
				Help:    "Time spent performing an action (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1ms .. ~32s
			},
			[]string{"action", "mode"},
		),
		AuthRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panicbutton_auth_rejected_total",
				Help: "Requests rejected because the key matched neither window",
			},
			[]string{"action"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panicbutton_http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
	}

	m.registry.MustRegister(
		m.ActionTotal,
		m.ActionDurationMS,
		m.AuthRejected,
		m.RequestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ActionPerformed records one action with its result label.
func (m *Metrics) ActionPerformed(action, mode, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActionTotal.WithLabelValues(action, mode, result).Inc()
	m.ActionDurationMS.WithLabelValues(action, mode).Observe(float64(elapsed.Milliseconds()))
}

// KeyRejected records a request turned away by the key guard.
func (m *Metrics) KeyRejected(action string) {
	if m == nil {
		return
	}
	m.AuthRejected.WithLabelValues(action).Inc()
}

// ServerRequest records one HTTP request.
func (m *Metrics) ServerRequest(method, route string, statusCode int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}
