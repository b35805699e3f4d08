// Package metrics exposes generation counters over Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

// Metrics holds the generation run's collectors on a private registry, so
// tests and parallel runs never collide on global registration.
type Metrics struct {
	registry *prometheus.Registry

	// EntitiesGenerated counts finished entities.
	EntitiesGenerated prometheus.Counter

	// StateActivations counts state activations per module.
	StateActivations *prometheus.CounterVec

	// ModuleCompletions counts entities whose walk of a module reached a
	// terminal state.
	ModuleCompletions *prometheus.CounterVec

	// GenerationSeconds observes wall time per generated entity.
	GenerationSeconds prometheus.Histogram
}

// New creates the collectors and registers them, plus the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EntitiesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifegraph_entities_generated_total",
			Help: "Entities fully generated.",
		}),
		StateActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifegraph_state_activations_total",
			Help: "Module state activations, revisits included.",
		}, []string{"module"}),
		ModuleCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifegraph_module_completions_total",
			Help: "Module walks that reached a terminal state.",
		}, []string{"module"}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifegraph_generation_seconds",
			Help:    "Wall time to generate one entity.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.EntitiesGenerated,
		m.StateActivations,
		m.ModuleCompletions,
		m.GenerationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, for test scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves metrics and a health endpoint at addr.
// Start with ListenAndServe; stop with Shutdown.
type Server struct {
	server *http.Server
}

// NewServer builds the exposition server for the given collectors.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}}
}

// ListenAndServe blocks serving the exposition endpoints. Returns
// http.ErrServerClosed after a graceful Shutdown.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
