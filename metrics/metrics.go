// Package metrics defines the prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournament"

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	RacesCompleted     *prometheus.CounterVec
	RoundsEnded        prometheus.Counter
	PickemsAwarded     prometheus.Counter
	CurrentRound       *prometheus.GaugeVec
	ArchiveFailures    prometheus.Counter
	RateLimitedRequest prometheus.Counter
}

// New creates a registry with process and Go collectors plus the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RacesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "races_completed_total",
			Help:      "Races completed by round.",
		}, []string{"round"}),
		RoundsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Rounds ended.",
		}),
		PickemsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pickems_points_awarded_total",
			Help:      "Pickems points awarded.",
		}),
		CurrentRound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_round",
			Help:      "Set to 1 for the round the tournament is in.",
		}, []string{"round"}),
		ArchiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Failed standings archive uploads.",
		}),
		RateLimitedRequest: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration, m.RacesCompleted, m.RoundsEnded,
		m.PickemsAwarded, m.CurrentRound, m.ArchiveFailures, m.RateLimitedRequest,
	)
	return m
}

// SetRound marks round as current and clears the others.
func (m *Metrics) SetRound(round string) {
	m.CurrentRound.Reset()
	m.CurrentRound.WithLabelValues(round).Set(1)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
