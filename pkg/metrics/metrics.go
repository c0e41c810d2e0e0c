// Package metrics exposes counters for the disruption flows on the default
// prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DisruptionsInjected counts induced failures by resource kind and mode
	DisruptionsInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odf_chaos_disruptions_injected_total",
		Help: "Number of induced failures (pod deletes, daemon kills, unit stops).",
	}, []string{"kind", "mode"})

	// RecoveriesVerified counts disruptions whose recovery check passed
	RecoveriesVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odf_chaos_recoveries_verified_total",
		Help: "Number of disruptions after which the cluster was verified healed.",
	}, []string{"kind", "mode"})

	// RecoveryFailures counts disruptions whose recovery never happened
	// within budget
	RecoveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odf_chaos_recovery_failures_total",
		Help: "Number of disruptions after which the recovery wait timed out.",
	}, []string{"kind", "mode"})
)
