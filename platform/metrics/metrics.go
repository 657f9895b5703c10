// Package metrics exposes Prometheus collectors for the API and workers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "raccordement"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	leadsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "leads",
		Name:      "created_total",
		Help:      "Leads created, by source.",
	}, []string{"source"})

	leadsConverted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "leads",
		Name:      "converted_total",
		Help:      "Leads converted into service requests.",
	})

	payments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "status_changes_total",
		Help:      "Payment status transitions applied, by resulting status.",
	}, []string{"status"})

	webhooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "webhooks_total",
		Help:      "Processor webhooks received, by event type and outcome.",
	}, []string{"type", "outcome"})

	emails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "email",
		Name:      "sent_total",
		Help:      "Transactional emails, by template and outcome.",
	}, []string{"template", "outcome"})

	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connected_clients",
		Help:      "Dashboard websocket connections currently open.",
	})

	jobRuns = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Duration of background jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"job", "success"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		leadsCreated,
		leadsConverted,
		payments,
		webhooks,
		emails,
		wsClients,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func LeadCreated(source string) {
	if source == "" {
		source = "unknown"
	}
	leadsCreated.WithLabelValues(source).Inc()
}

func LeadConverted() { leadsConverted.Inc() }

func PaymentStatus(status string) { payments.WithLabelValues(status).Inc() }

func Webhook(eventType, outcome string) { webhooks.WithLabelValues(eventType, outcome).Inc() }

func EmailSent(template string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	emails.WithLabelValues(template, outcome).Inc()
}

func WSConnected()    { wsClients.Inc() }
func WSDisconnected() { wsClients.Dec() }

// ObserveJob records the duration and outcome of a background job.
func ObserveJob(job string, start time.Time, err error) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
}
