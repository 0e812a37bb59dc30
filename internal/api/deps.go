// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"

	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/health"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/stats"
)

// QueueReader exposes the queue counters and the completion status.
type QueueReader interface {
	NumberOfQueuedJobs(ctx context.Context, id model.ReleaseID) (int64, error)
	NumberOfRenderingsInProgress(ctx context.Context, id model.ReleaseID) (int64, error)
	GetCompletionStatus(ctx context.Context, id model.ReleaseID) (model.CompletionStatus, error)
}

type StatsReader interface {
	Snapshot(ctx context.Context, id model.ReleaseID) (stats.Snapshot, error)
}

type ErrorReader interface {
	Count(ctx context.Context, id model.ReleaseID) (int64, error)
	List(ctx context.Context, id model.ReleaseID) ([]errortracker.RenderingError, error)
}

type ReleaseReader interface {
	Count(ctx context.Context, id model.ReleaseID) (int64, error)
	URLs(ctx context.Context, id model.ReleaseID) ([]string, error)
}

type EnumerationCounter interface {
	Count(ctx context.Context, id model.ReleaseID) (int64, error)
}

// Deps are the read-only stores behind the admin API.
type Deps struct {
	// Health answers /healthz and /readyz; nil reports ready.
	Health      *health.Manager
	Queue       QueueReader
	Stats       StatsReader
	Errors      ErrorReader
	Releases    ReleaseReader
	Enumeration EnumerationCounter
}

// Describe collects the current state of a release from every store.
func (d Deps) Describe(ctx context.Context, id model.ReleaseID) (ReleaseView, error) {
	view := ReleaseView{ReleaseID: id}

	status, err := d.Queue.GetCompletionStatus(ctx, id)
	if err != nil {
		return view, err
	}
	view.Status = statusName(status)

	if view.EnumeratedNodes, err = d.Enumeration.Count(ctx, id); err != nil {
		return view, err
	}
	if view.Documents, err = d.Releases.Count(ctx, id); err != nil {
		return view, err
	}
	if view.QueuedJobs, err = d.Queue.NumberOfQueuedJobs(ctx, id); err != nil {
		return view, err
	}
	if view.RenderingsInFlight, err = d.Queue.NumberOfRenderingsInProgress(ctx, id); err != nil {
		return view, err
	}
	snap, err := d.Stats.Snapshot(ctx, id)
	if err != nil {
		return view, err
	}
	view.RemainingJobs = snap.Progress.RemainingJobs
	view.TotalJobs = snap.Progress.TotalJobs
	view.RenderingsPerSecond = snap.RenderingsPerSecond
	if view.RenderingsPerSecond == nil {
		view.RenderingsPerSecond = []float64{}
	}
	if view.Errors, err = d.Errors.Count(ctx, id); err != nil {
		return view, err
	}
	return view, nil
}
