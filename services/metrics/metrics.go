package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intigym/backoffice/core/access"
)

// Metrics holds the application collectors and the registry serving them.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request rate by route and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP request latency per route.
	HTTPRequestDuration *prometheus.HistogramVec
	// Door validations by outcome (granted, expired, not_found, invalid_dni, unreadable).
	AccessValidationsTotal *prometheus.CounterVec
	// Reminder emails queued by the background job.
	RemindersSentTotal prometheus.Counter
	// Members whose payment status was rewritten by a refresh.
	StatusChangesTotal *prometheus.CounterVec
	// Requests refused by the auth rate limiter.
	RateLimitDeniedTotal prometheus.Counter
}

var _ access.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AccessValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_validations_total",
				Help: "Total number of member access validations by outcome",
			},
			[]string{"outcome"},
		),
		RemindersSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "membership_reminders_sent_total",
				Help: "Total number of expiration reminder emails queued",
			},
		),
		StatusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_status_changes_total",
				Help: "Total number of payment status changes applied by refreshes",
			},
			[]string{"status"},
		),
		RateLimitDeniedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_denied_total",
				Help: "Total number of requests denied by the rate limiter (429)",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.AccessValidationsTotal, m.RemindersSentTotal, m.StatusChangesTotal,
		m.RateLimitDeniedTotal,
	)
	return m
}

func (m *Metrics) RecordAccess(outcome string) {
	m.AccessValidationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordStatusRefresh(expired, current int) {
	m.StatusChangesTotal.WithLabelValues("vencido").Add(float64(expired))
	m.StatusChangesTotal.WithLabelValues("al-dia").Add(float64(current))
}

// Handler serves application and runtime metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
