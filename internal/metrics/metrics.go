// Package metrics provides Prometheus instrumentation for the monitoring
// engine and REST façade.
//
// Each process registers these metrics once at startup (via promauto, against
// the default registry) and exposes them at GET /metrics through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PollsTotal counts completed polls by monitor and stream.
var PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsmonitor_polls_total",
	Help: "Total polls performed, by monitor and stream.",
}, []string{"monitor_id", "stream_id"})

// ErrorsTotal counts validation errors raised, by monitor and error kind.
var ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsmonitor_errors_total",
	Help: "Validation errors raised, by monitor and error type.",
}, []string{"monitor_id", "error_type"})

// EventsTotal counts lifecycle/ad-break events raised, by monitor and kind.
var EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsmonitor_events_total",
	Help: "Monitor events raised, by monitor and event kind.",
}, []string{"monitor_id", "kind"})

// WebhookDeliveriesTotal counts webhook deliveries by final outcome, once per
// delivery rather than once per attempt.
var WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsmonitor_webhook_deliveries_total",
	Help: "Webhook deliveries, by final outcome (success, fatal, retry_exhausted).",
}, []string{"outcome"})

// ActiveMonitors is the number of monitors currently in the Active state.
var ActiveMonitors = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "hlsmonitor_active_monitors",
	Help: "Number of monitors currently Active.",
})

// PollDuration tracks how long a full poll of one stream (every variant)
// takes to complete.
var PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "hlsmonitor_poll_duration_seconds",
	Help:    "Time to poll one stream's full variant set.",
	Buckets: prometheus.DefBuckets,
}, []string{"monitor_id"})

// Handler returns the Prometheus scrape handler, mounted at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
