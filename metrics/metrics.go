// Package metrics registers the prometheus collectors exported on the
// status server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boatclient_actions_submitted_total",
		Help: "Actions entering the submission pipeline, by kind.",
	}, []string{"kind"})

	ActionsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boatclient_actions_confirmed_total",
		Help: "Actions confirmed on chain, by kind.",
	}, []string{"kind"})

	ActionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boatclient_actions_failed_total",
		Help: "Actions terminally failed, by kind and error kind.",
	}, []string{"kind", "err_kind"})

	SubmitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boatclient_submit_retries_total",
		Help: "Widened-budget resubmissions after a gas shortfall.",
	})

	EventsAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boatclient_events_admitted_total",
		Help: "Chain events admitted by the deduplicator, by type.",
	}, []string{"type"})

	EventsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boatclient_events_deduped_total",
		Help: "Raw logs dropped as duplicates.",
	})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boatclient_cache_invalidations_total",
		Help: "Cache entries marked stale by the invalidation bus.",
	})

	Sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boatclient_sweeps_total",
		Help: "Full-cache fallback sweeps performed.",
	})

	LeaderboardFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boatclient_leaderboard_fallbacks_total",
		Help: "Leaderboard loads served by the synthetic fallback.",
	})
)
