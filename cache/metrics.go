package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Lookup results recorded by Metrics
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultStale  = "stale"
	ResultBypass = "bypass"
)

// Metrics counts Manager activity. A nil *Metrics records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	refreshErrors *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
	invalidations prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg if non-nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertsua_cache_lookups_total",
			Help: "Total cache lookups by request type and result",
		}, []string{"type", "result"}),
		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertsua_cache_refresh_errors_total",
			Help: "Total failed refreshes by request type",
		}, []string{"type"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertsua_cache_store_failures_total",
			Help: "Total cache writes that failed and were dropped",
		}, []string{"type"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertsua_cache_tag_invalidations_total",
			Help: "Total tag invalidation calls",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.refreshErrors, m.storeFailures, m.invalidations)
	}
	return m
}

func (m *Metrics) lookup(typ, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) refreshError(typ string) {
	if m == nil {
		return
	}
	m.refreshErrors.WithLabelValues(typ).Inc()
}

func (m *Metrics) storeFailure(typ string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(typ).Inc()
}

func (m *Metrics) invalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
