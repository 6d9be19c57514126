package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "interlude"

// Metrics holds the orchestration collectors.
type Metrics struct {
	registry *prometheus.Registry

	drives        *prometheus.CounterVec
	driveDuration *prometheus.HistogramVec
	pauses        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	busy          prometheus.Counter
}

// NewMetrics creates the collectors on a dedicated registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		drives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "drives_total",
			Help:      "Engine drives by phase and outcome.",
		}, []string{"phase", "outcome"}),
		driveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "drive_duration_seconds",
			Help:      "Duration of engine drives.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pauses_total",
			Help:      "Pauses observed, and whether they were returned to the caller.",
		}, []string{"phase", "surfaced"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_transitions_total",
			Help:      "Session status transitions by target status.",
		}, []string{"to"}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_busy_total",
			Help:      "Calls rejected because the session had a drive in flight.",
		}),
	}

	m.registry.MustRegister(
		m.drives,
		m.driveDuration,
		m.pauses,
		m.transitions,
		m.busy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDrive: func(ctx context.Context, e *domain.DriveEvent) {
			m.drives.WithLabelValues(string(e.Phase), string(e.Outcome)).Inc()
			m.driveDuration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		},
		OnPause: func(ctx context.Context, e *domain.PauseEvent) {
			m.pauses.WithLabelValues(string(e.Phase), strconv.FormatBool(e.Surfaced)).Inc()
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(string(e.To)).Inc()
		},
		OnBusy: func(ctx context.Context, sessionID string) {
			m.busy.Inc()
		},
	}
}
