// Package metrics exposes Prometheus collectors for key checks, admin
// operations and store contents.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check results.
const (
	CheckValid   = "valid"
	CheckInvalid = "invalid"
	CheckMissing = "missing"
	CheckError   = "error"
)

// Metrics holds the service collectors on a private registry. All methods
// are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	checks   *prometheus.CounterVec
	adminOps *prometheus.CounterVec
	keys     *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "checks_total",
			Help:      "Key validation requests by result.",
		}, []string{"result"}),
		adminOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "admin_operations_total",
			Help:      "Admin operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		keys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "keygate",
			Name:      "keys",
			Help:      "Stored keys by state, as of the last statistics run.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.checks,
		m.adminOps,
		m.keys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCheck counts a validation with the given result.
func (m *Metrics) ObserveCheck(result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result).Inc()
}

// ObserveAdmin counts an admin operation outcome.
func (m *Metrics) ObserveAdmin(operation, outcome string) {
	if m == nil {
		return
	}
	m.adminOps.WithLabelValues(operation, outcome).Inc()
}

// SetKeyCounts records the number of stored and active keys.
func (m *Metrics) SetKeyCounts(total, active int) {
	if m == nil {
		return
	}
	m.keys.WithLabelValues("total").Set(float64(total))
	m.keys.WithLabelValues("active").Set(float64(active))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
