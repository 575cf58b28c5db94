// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is the full set of recorders used by services, middleware and workers.
// Each consumer depends on the narrow subset it needs.
type MetricsCollector interface {
	RecordAuthAttempt(operation, outcome string)
	RecordSessionCreated()
	RecordSessionsPurged(count int64)
	RecordNotificationQueued(eventType string)
	RecordNotificationDropped(reason string)
	RecordEmailSent(eventType string)
	RecordEmailFailed(eventType string)
	RecordEmailSendLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus implementation of MetricsCollector.
type Collector struct {
	authAttempts     *prometheus.CounterVec
	sessionsCreated  prometheus.Counter
	sessionsPurged   prometheus.Counter
	notifQueued      *prometheus.CounterVec
	notifDropped     *prometheus.CounterVec
	emailsSent       *prometheus.CounterVec
	emailsFailed     *prometheus.CounterVec
	emailSendLatency prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_auth_attempts_total",
			Help: "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildwise_sessions_created_total",
			Help: "Sessions created.",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildwise_sessions_purged_total",
			Help: "Expired sessions deleted by the cleanup job.",
		}),
		notifQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_email_notifications_queued_total",
			Help: "Email notifications stored for delivery.",
		}, []string{"event_type"}),
		notifDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_email_notifications_dropped_total",
			Help: "Email notifications that could not be queued.",
		}, []string{"reason"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_emails_sent_total",
			Help: "Emails delivered to the SMTP server.",
		}, []string{"event_type"}),
		emailsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_emails_failed_total",
			Help: "Email delivery attempts that failed.",
		}, []string{"event_type"}),
		emailSendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buildwise_email_send_latency_seconds",
			Help:    "SMTP send latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildwise_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.sessionsCreated,
		c.sessionsPurged,
		c.notifQueued,
		c.notifDropped,
		c.emailsSent,
		c.emailsFailed,
		c.emailSendLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthAttempt counts an auth operation. outcome is "success" or an error code.
func (c *Collector) RecordAuthAttempt(operation, outcome string) {
	c.authAttempts.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

func (c *Collector) RecordNotificationQueued(eventType string) {
	c.notifQueued.WithLabelValues(eventType).Inc()
}

// RecordNotificationDropped counts a notification lost before storage, e.g. "queue_full".
func (c *Collector) RecordNotificationDropped(reason string) {
	c.notifDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordEmailSent(eventType string) {
	c.emailsSent.WithLabelValues(eventType).Inc()
}

func (c *Collector) RecordEmailFailed(eventType string) {
	c.emailsFailed.WithLabelValues(eventType).Inc()
}

func (c *Collector) RecordEmailSendLatency(duration time.Duration) {
	c.emailSendLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
