// Package metrics exposes backend traffic and resolution outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"resolvarr/models"
	"resolvarr/services/debrid"
)

const namespace = "resolvarr"

// Manager owns a private registry so tests and embedders never collide with
// the default Prometheus registerer.
type Manager struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheProbes     *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	pollAttempts    *prometheus.HistogramVec
	resolveDuration *prometheus.HistogramVec
}

var (
	_ debrid.RequestObserver    = (*Manager)(nil)
	_ debrid.ResolutionObserver = (*Manager)(nil)
)

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend HTTP requests by operation and outcome.",
		}, []string{"backend", "operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		cacheProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "probes_total",
			Help:      "Per-backend cache probes within a fan-out.",
		}, []string{"backend", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "resolutions_total",
			Help:      "Stream resolutions by backend and outcome.",
		}, []string{"backend", "outcome"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "poll_attempts",
			Help:      "Readiness polls needed per resolution.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		}, []string{"backend"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "resolution_duration_seconds",
			Help:      "Wall time of a stream resolution.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"backend"}),
	}

	registry.MustRegister(m.requests, m.requestDuration, m.cacheProbes, m.resolutions, m.pollAttempts, m.resolveDuration)

	log.Info().Msg("Metrics manager initialized")
	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) ObserveRequest(backend models.BackendType, operation string, outcome string, took time.Duration) {
	m.requests.WithLabelValues(string(backend), operation, outcome).Inc()
	m.requestDuration.WithLabelValues(string(backend), operation).Observe(took.Seconds())
}

func (m *Manager) ObserveCacheProbe(backend models.BackendType, outcome string) {
	m.cacheProbes.WithLabelValues(string(backend), outcome).Inc()
}

func (m *Manager) ObserveResolution(backend models.BackendType, outcome string, attempts int, took time.Duration) {
	m.resolutions.WithLabelValues(string(backend), outcome).Inc()
	if attempts > 0 {
		m.pollAttempts.WithLabelValues(string(backend)).Observe(float64(attempts))
	}
	m.resolveDuration.WithLabelValues(string(backend)).Observe(took.Seconds())
}
