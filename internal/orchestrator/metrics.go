// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	releaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crel_release_render_outcomes_total",
			Help: "Finished release renders by outcome.",
		},
		[]string{"outcome"}, // outcome: success, empty, not_converged, conflict, error
	)

	passesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crel_render_passes_total",
		Help: "Convergence passes started.",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crel_render_pass_duration_seconds",
		Help:    "Time from the start of a pass until the queue drained.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	})

	documentsCopied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crel_documents_copied_total",
		Help: "Complete cache entries copied into releases.",
	})

	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crel_rendering_jobs_enqueued_total",
		Help: "Rendering jobs enqueued for incomplete cache entries.",
	})

	staleClaimsRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crel_stale_claims_requeued_total",
		Help: "Claims of unresponsive workers returned to pending.",
	})
)
