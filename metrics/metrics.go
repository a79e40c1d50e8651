// Package metrics provides the concrete prometheus-backed adapter for the
// root package's Metrics capability. Grounded on the C360Studio pack's
// metric.Metrics: explicit prometheus.NewCounterVec/NewHistogramVec fields
// registered against an owned *prometheus.Registry rather than promauto's
// package-global DefaultRegisterer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	gqlsparql "github.com/twinfer/gqlsparql"
)

var _ gqlsparql.Metrics = (*Prometheus)(nil)

// Prometheus adapts a set of prometheus collectors to gqlsparql.Metrics.
// It owns its own *prometheus.Registry rather than registering against
// prometheus.DefaultRegisterer, so a process embedding this module can
// expose it on whatever path and alongside whatever other collectors it
// likes.
type Prometheus struct {
	registry *prometheus.Registry

	compileLatency  *prometheus.HistogramVec
	compileErrors   *prometheus.CounterVec
	endpointLatency *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// New builds a Prometheus metrics adapter and registers its collectors
// against a fresh registry.
func New() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,

		compileLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gqlsparql",
				Subsystem: "compile",
				Name:      "duration_seconds",
				Help:      "Time to compile a GraphQL operation into SPARQL, by operation kind.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		compileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gqlsparql",
				Subsystem: "compile",
				Name:      "errors_total",
				Help:      "Total compile errors, by stable error code.",
			},
			[]string{"code"},
		),
		endpointLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gqlsparql",
				Subsystem: "endpoint",
				Name:      "duration_seconds",
				Help:      "Time spent waiting on the SPARQL endpoint, by call kind and outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"call", "outcome"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gqlsparql",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total compiled-query cache hits.",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gqlsparql",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total compiled-query cache misses.",
			},
		),
	}

	registry.MustRegister(
		p.compileLatency,
		p.compileErrors,
		p.endpointLatency,
		p.cacheHits,
		p.cacheMisses,
	)

	return p
}

// Registry returns the underlying registry, for wiring into an HTTP
// /metrics handler (promhttp.HandlerFor).
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ObserveCompileLatency(operation string, seconds float64) {
	p.compileLatency.WithLabelValues(operation).Observe(seconds)
}

func (p *Prometheus) IncCompileError(code string) {
	p.compileErrors.WithLabelValues(code).Inc()
}

func (p *Prometheus) ObserveEndpointLatency(call string, outcome string, seconds float64) {
	p.endpointLatency.WithLabelValues(call, outcome).Observe(seconds)
}

func (p *Prometheus) IncCacheHit() {
	p.cacheHits.Inc()
}

func (p *Prometheus) IncCacheMiss() {
	p.cacheMisses.Inc()
}

// Since returns the time elapsed since start, in seconds, ready to pass
// to an Observe* method. A small convenience for call sites that measure
// with time.Now/defer.
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
