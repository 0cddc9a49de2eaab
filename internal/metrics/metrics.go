package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "marketplace"
)

var (
	// Edge Gatekeeper Metrics
	GatekeeperDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gatekeeper_decisions_total",
		Help:      "Count of edge gatekeeper decisions by action.",
	}, []string{"action"})

	// Page Guard Metrics
	GuardOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_outcomes_total",
		Help:      "Count of page guard outcomes.",
	}, []string{"outcome"})

	// Auth Resolver Metrics
	AuthResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_resolutions_total",
		Help:      "Count of settled auth resolutions by result.",
	}, []string{"result"})

	AuthResolversActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auth_resolvers_active",
		Help:      "Number of live per-session auth resolvers.",
	})

	ProfileFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "profile_fetch_duration_seconds",
		Help:      "Time taken to fetch a user profile record during resolution.",
		Buckets:   prometheus.DefBuckets,
	})
)
