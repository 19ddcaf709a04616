// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters.
type Metrics struct {
	MatchesTotal     *prometheus.CounterVec
	AdjustmentsTotal *prometheus.CounterVec
	PushesTotal      *prometheus.CounterVec
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelens_matches_total",
			Help: "Matched products by confidence tier.",
		}, []string{"confidence"}),
		AdjustmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelens_price_adjustments_total",
			Help: "Bulk price adjustment rows by outcome.",
		}, []string{"status"}),
		PushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelens_platform_pushes_total",
			Help: "Metafield push rows by outcome.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.MatchesTotal, m.AdjustmentsTotal, m.PushesTotal)
	return m
}
