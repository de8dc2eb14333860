package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics covers the HTTP surface of the procurement API.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "procurement",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// DispatcherMetrics counts notification delivery outcomes.
type DispatcherMetrics struct {
	Delivered prometheus.Counter
	Failed    prometheus.Counter
	Retries   prometheus.Counter
}

func NewDispatcherMetrics() *DispatcherMetrics {
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "dispatcher",
		Name:      "notifications_delivered_total",
		Help:      "Notifications delivered successfully.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "dispatcher",
		Name:      "notifications_failed_total",
		Help:      "Notifications marked failed after exhausting retries.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "dispatcher",
		Name:      "notification_retries_total",
		Help:      "Individual delivery attempts that were retried.",
	})

	prometheus.MustRegister(delivered, failed, retries)
	return &DispatcherMetrics{Delivered: delivered, Failed: failed, Retries: retries}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
