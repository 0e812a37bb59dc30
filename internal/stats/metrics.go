// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderingsPerSecond = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crel_renderings_per_second",
			Help: "Most recent rendering throughput sample per release.",
		},
		[]string{"release"},
	)

	progressRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crel_rendering_jobs_remaining",
			Help: "Queued plus in-progress rendering jobs of the current pass.",
		},
		[]string{"release"},
	)

	progressTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crel_rendering_jobs_total",
			Help: "Rendering jobs enqueued in the current pass.",
		},
		[]string{"release"},
	)
)
