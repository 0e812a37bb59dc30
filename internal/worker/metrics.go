// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crel_worker_jobs_total",
			Help: "Rendering jobs processed by result.",
		},
		[]string{"result"}, // result: complete, partial, failed
	)

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crel_worker_render_duration_seconds",
		Help:    "Time spent in the renderer per job.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)
