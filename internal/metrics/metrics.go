// Package metrics exports zone tick measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

const namespace = "simpleai"

// Metrics implements ai.Observer on top of a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	tickDuration  *prometheus.HistogramVec
	ais           *prometheus.GaugeVec
	deferred      *prometheus.CounterVec
	deferredDrops *prometheus.CounterVec
	exceptions    *prometheus.CounterVec
}

var _ ai.Observer = (*Metrics)(nil)

// New registers the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "zone",
			Name:      "ticks_total",
			Help:      "Zone updates performed.",
		}, []string{"zone"}),
		tickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "zone",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one zone update.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"zone"}),
		ais: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "zone",
			Name:      "ais",
			Help:      "AIs resident in the zone during the last update.",
		}, []string{"zone"}),
		deferred: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "zone",
			Name:      "deferred_total",
			Help:      "Deferred callbacks executed.",
		}, []string{"zone"}),
		deferredDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "zone",
			Name:      "deferred_dropped_total",
			Help:      "Deferred callbacks dropped because their AI left the zone.",
		}, []string{"zone"}),
		exceptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "exceptions_total",
			Help:      "Faults caught at tree node boundaries.",
		}, []string{"zone", "type"}),
	}
}

func (m *Metrics) ObserveTick(zone string, ais int, elapsed time.Duration) {
	m.ticks.WithLabelValues(zone).Inc()
	m.tickDuration.WithLabelValues(zone).Observe(elapsed.Seconds())
	m.ais.WithLabelValues(zone).Set(float64(ais))
}

func (m *Metrics) ObserveDeferred(zone string, drained, dropped int) {
	m.deferred.WithLabelValues(zone).Add(float64(drained))
	if dropped > 0 {
		m.deferredDrops.WithLabelValues(zone).Add(float64(dropped))
	}
}

func (m *Metrics) ObserveException(zone, nodeType string) {
	m.exceptions.WithLabelValues(zone, nodeType).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
