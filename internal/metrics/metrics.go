// Package metrics owns the process-wide Prometheus registry entries.
// Everything registers once through promauto; Get hands the singleton
// to middleware, the command bus, and the projection observer.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chirper/internal/domain"
)

// Metrics holds every instrument the service exports.
type Metrics struct {
	// Write side
	CommandsTotal      *prometheus.CounterVec
	EventsProjected    *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	FanoutSize         prometheus.Histogram
	TimelineTrimsTotal prometheus.Counter

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton, building and registering it on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			CommandsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chirper_commands_total",
					Help: "Commands processed, by command name and outcome",
				},
				[]string{"command", "status"},
			),
			EventsProjected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chirper_events_projected_total",
					Help: "Events folded into the read store, by kind and outcome",
				},
				[]string{"kind", "status"},
			),
			ProjectionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chirper_projection_duration_seconds",
					Help:    "Latency of a single event projection",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
				},
				[]string{"kind"},
			),
			FanoutSize: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chirper_fanout_size",
					Help:    "Timelines touched by one post's fan-out or backfill",
					Buckets: prometheus.ExponentialBuckets(1, 4, 8),
				},
			),
			TimelineTrimsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chirper_timeline_trims_total",
					Help: "Timeline truncations at the configured cap",
				},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chirper_http_requests_total",
					Help: "HTTP requests, by method, route pattern, and status",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chirper_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path"},
			),
		}
	})
	return instance
}

// RecordCommand counts one command outcome.
func RecordCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Get().CommandsTotal.WithLabelValues(command, status).Inc()
}

// ProjectionObserver adapts the registry to the projector's Observer
// interface.
type ProjectionObserver struct{}

func NewProjectionObserver() ProjectionObserver { return ProjectionObserver{} }

func (ProjectionObserver) EventApplied(kind domain.EventKind, fanout int, d time.Duration) {
	m := Get()
	m.EventsProjected.WithLabelValues(kind.String(), "ok").Inc()
	m.ProjectionDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
	if fanout > 0 {
		m.FanoutSize.Observe(float64(fanout))
	}
}

func (ProjectionObserver) ApplyFailed(kind domain.EventKind, err error) {
	Get().EventsProjected.WithLabelValues(kind.String(), "error").Inc()
}
