// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator drives a content release to a state where every page
// is completely rendered, or to a bounded, observable failure.
//
// A render is a bounded fixed-point iteration. Each pass checks the shared
// cache for every page of the current set: complete renders are copied into
// the release, incomplete ones are queued for the external workers and carried
// into the next set. The orchestrator then waits until the queue is drained
// and re-examines only the carried-over pages. Pages can be invalidated by
// unrelated edits while others render, so a single pass is not enough; the
// pass bound guarantees termination when invalidations cascade or a page
// never renders.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/contentrelease/internal/lease"
	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/telemetry"
)

const (
	DefaultMaxPasses    = 10
	DefaultPollInterval = time.Second
	DefaultSampleEvery  = 10
	// DefaultLeaseRenewEvery applies when the held lease does not report its TTL.
	DefaultLeaseRenewEvery = 10 * time.Second

	tracerName = "contentrelease.orchestrator"
)

// Queue is the orchestrator's view of the rendering queue.
type Queue interface {
	Flush(ctx context.Context, id model.ReleaseID) error
	AppendRenderingJob(ctx context.Context, id model.ReleaseID, node model.EnumeratedNode) error
	NumberOfQueuedJobs(ctx context.Context, id model.ReleaseID) (int64, error)
	NumberOfRenderingsInProgress(ctx context.Context, id model.ReleaseID) (int64, error)
	GetCompletionStatus(ctx context.Context, id model.ReleaseID) (model.CompletionStatus, error)
	SetCompletionStatus(ctx context.Context, id model.ReleaseID, status model.CompletionStatus) error
}

// StaleClaimRequeuer is implemented by queues that can return claims of dead
// workers to pending.
type StaleClaimRequeuer interface {
	RequeueStaleClaims(ctx context.Context, id model.ReleaseID, olderThan time.Duration) (int, error)
}

// CacheReader answers whether a complete render exists for a cache key.
type CacheReader interface {
	TryToExtractRendering(ctx context.Context, key model.CacheKey) (model.RenderedDocument, error)
}

// ReleaseWriter stores a complete document into a release.
type ReleaseWriter interface {
	WriteRenderedDocument(ctx context.Context, id model.ReleaseID, url string, content []byte) error
}

// ErrorTracker is flushed on entry; the orchestrator never reads it.
type ErrorTracker interface {
	Flush(ctx context.Context, id model.ReleaseID) error
}

// StatsTracker receives throughput and progress samples.
type StatsTracker interface {
	Flush(ctx context.Context, id model.ReleaseID) error
	AddDataPointForRenderingsPerSecond(ctx context.Context, id model.ReleaseID, rate float64) error
	UpdateRenderingProgress(ctx context.Context, id model.ReleaseID, p model.RenderingProgress) error
}

// EnumerationSource supplies the frozen page list of a release.
type EnumerationSource interface {
	Count(ctx context.Context, id model.ReleaseID) (int64, error)
	FindAll(ctx context.Context, id model.ReleaseID) ([]model.EnumeratedNode, error)
}

// Result summarises a finished render.
type Result struct {
	ReleaseID model.ReleaseID
	Status    model.CompletionStatus
	Passes    int
	Copied    int
	Enqueued  int
}

// Orchestrator renders content releases. The zero values of the tuning
// fields select the defaults; Leaser and Clock are optional.
type Orchestrator struct {
	Queue       Queue
	Cache       CacheReader
	Writer      ReleaseWriter
	Errors      ErrorTracker
	Stats       StatsTracker
	Enumeration EnumerationSource
	Leaser      Leaser
	Clock       clockwork.Clock

	MaxPasses    int
	PollInterval time.Duration
	SampleEvery  int
	// LeaseRenewEvery defaults to a third of the lease TTL.
	LeaseRenewEvery time.Duration
	// ClaimTimeout requeues claims held longer than this while draining.
	// Zero disables it, as does a Queue without RequeueStaleClaims.
	ClaimTimeout time.Duration
}

func (o *Orchestrator) applyDefaults() {
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.SampleEvery <= 0 {
		o.SampleEvery = DefaultSampleEvery
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// RenderContentRelease renders release id until every page is complete or
// the pass bound is exhausted, and records the terminal completion status.
// A release that already has a status is refused with *AlreadyCompletedError.
// Infrastructure errors abort the run without recording a status, so a later
// invocation restarts cleanly.
func (o *Orchestrator) RenderContentRelease(ctx context.Context, id model.ReleaseID, logger zerolog.Logger) (res Result, err error) {
	o.applyDefaults()
	res.ReleaseID = id

	ctx = log.ContextWithReleaseID(ctx, string(id))
	logger = log.WithContext(ctx, logger)

	ctx, span := telemetry.Start(ctx, tracerName, "render_content_release",
		attribute.String(telemetry.ReleaseIDKey, string(id)))
	defer func() {
		span.SetAttributes(
			attribute.String(telemetry.ReleaseStatusKey, string(res.Status)),
			attribute.Int(telemetry.PassKey, res.Passes),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		releaseOutcomes.WithLabelValues(outcome(err)).Inc()
	}()

	held, err := o.acquireLease(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "release.lease_unavailable").Msg("cannot render release")
		return res, err
	}
	if held != nil {
		defer func() {
			// Release with a fresh context: ctx may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := held.Release(releaseCtx); rerr != nil && !errors.Is(rerr, lease.ErrNotHeld) {
				logger.Warn().Err(rerr).Msg("failed to release render lease")
			}
		}()
		defer func() {
			if errors.Is(err, ErrLeaseLost) {
				logger.Error().Err(err).
					Str(log.FieldEvent, "release.lease_lost").
					Int(log.FieldPass, res.Passes).
					Msg("render lease lapsed; stopping without recording a status")
			}
		}()
	}
	keeper := newLeaseKeeper(held, o.Clock, o.LeaseRenewEvery)

	status, err := o.Queue.GetCompletionStatus(ctx, id)
	if err != nil {
		return res, err
	}
	if status.IsTerminal() {
		res.Status = status
		conflict := &AlreadyCompletedError{ReleaseID: id, Status: status}
		logger.Error().
			Str(log.FieldEvent, "release.already_completed").
			Str(log.FieldStatus, string(status)).
			Msg("release already has a completion status; not rendering again")
		return res, conflict
	}

	if err := o.reset(ctx, logger, id); err != nil {
		return res, err
	}

	count, err := o.Enumeration.Count(ctx, id)
	if err != nil {
		return res, err
	}
	var current []model.EnumeratedNode
	if count > 0 {
		if current, err = o.Enumeration.FindAll(ctx, id); err != nil {
			return res, err
		}
	}
	if len(current) == 0 {
		logger.Error().
			Str(log.FieldEvent, "release.empty_enumeration").
			Msg("release has no pages to render; marking it failed")
		if err := keeper.renewIfDue(ctx); err != nil {
			return res, err
		}
		return o.finish(ctx, logger, res, model.CompletionFailed, ErrEmptyEnumeration)
	}

	logger.Info().
		Str(log.FieldEvent, "release.render_started").
		Int(log.FieldTotal, len(current)).
		Int(log.FieldMaxPasses, o.MaxPasses).
		Msg("rendering release")

	for pass := 1; pass <= o.MaxPasses; pass++ {
		res.Passes = pass
		passLogger := logger.With().Int(log.FieldPass, pass).Logger()

		next, copied, err := o.runPass(ctx, passLogger, id, pass, current, keeper)
		res.Copied += copied
		res.Enqueued += len(next)
		if err != nil {
			return res, err
		}

		if len(next) == 0 {
			if err := keeper.renewIfDue(ctx); err != nil {
				return res, err
			}
			passLogger.Info().
				Str(log.FieldEvent, "release.converged").
				Int(log.FieldCopied, res.Copied).
				Msg("all pages completely rendered")
			return o.finish(ctx, logger, res, model.CompletionSuccess, nil)
		}

		passLogger.Info().
			Str(log.FieldEvent, "release.pass_waiting").
			Int(log.FieldCopied, copied).
			Int(log.FieldEnqueued, len(next)).
			Msg("waiting for workers to drain the queue")

		started := o.Clock.Now()
		if err := o.waitForDrain(ctx, passLogger, id, int64(len(next)), keeper); err != nil {
			return res, err
		}
		passDuration.Observe(o.Clock.Since(started).Seconds())

		current = next
	}

	if err := keeper.renewIfDue(ctx); err != nil {
		return res, err
	}

	convergence := &ConvergenceError{ReleaseID: id, Passes: res.Passes, Pending: len(current)}
	logger.Error().
		Str(log.FieldEvent, "release.not_converged").
		Int(log.FieldPass, res.Passes).
		Int(log.FieldEnqueued, len(current)).
		Msg("pass bound exceeded without a complete render of all pages; marking release failed")
	return o.finish(ctx, logger, res, model.CompletionFailed, convergence)
}

func (o *Orchestrator) acquireLease(ctx context.Context, id model.ReleaseID) (HeldLease, error) {
	if o.Leaser == nil {
		return nil, nil
	}
	held, ok, err := o.Leaser.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, id)
	}
	return held, nil
}

// reset clears state a crashed earlier attempt may have left behind. A stats
// flush failure is only logged.
func (o *Orchestrator) reset(ctx context.Context, logger zerolog.Logger, id model.ReleaseID) error {
	if err := o.Queue.Flush(ctx, id); err != nil {
		return err
	}
	if err := o.Errors.Flush(ctx, id); err != nil {
		return err
	}
	if err := o.Stats.Flush(ctx, id); err != nil {
		logger.Warn().Err(err).Msg("failed to flush statistics")
	}
	return nil
}

// runPass checks every node once. It returns the nodes that were enqueued.
func (o *Orchestrator) runPass(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, pass int, nodes []model.EnumeratedNode, keeper *leaseKeeper) (next []model.EnumeratedNode, copied int, err error) {
	passesTotal.Inc()
	ctx, span := telemetry.Start(ctx, tracerName, "render_pass", telemetry.PassAttributes(string(id), pass, len(nodes))...)
	defer func() {
		span.SetAttributes(
			attribute.Int(telemetry.CopiedKey, copied),
			attribute.Int(telemetry.EnqueuedKey, len(next)),
		)
		span.End()
	}()

	for _, node := range nodes {
		if err := keeper.renewIfDue(ctx); err != nil {
			return next, copied, err
		}
		key := node.CacheKey()
		doc, err := o.Cache.TryToExtractRendering(ctx, key)
		if err != nil {
			return next, copied, err
		}

		if doc.Complete {
			if err := o.Writer.WriteRenderedDocument(ctx, id, doc.URL, doc.Content); err != nil {
				return next, copied, err
			}
			copied++
			documentsCopied.Inc()
			logger.Debug().
				Str(log.FieldNodeID, node.NodeID).
				Str(log.FieldCacheKey, string(key)).
				Str(log.FieldURL, doc.URL).
				Msg("copied complete render into release")
			continue
		}

		if err := o.Queue.AppendRenderingJob(ctx, id, node); err != nil {
			return next, copied, err
		}
		jobsEnqueued.Inc()
		next = append(next, node)
		logger.Debug().
			Str(log.FieldNodeID, node.NodeID).
			Str(log.FieldCacheKey, string(key)).
			Str(log.FieldReason, string(doc.IncompleteReason)).
			Msg("enqueued rendering job")
	}

	if len(next) > 0 {
		o.publishProgress(ctx, logger, id, model.RenderingProgress{RemainingJobs: int64(len(next)), TotalJobs: int64(len(next))})
	}
	return next, copied, nil
}

// finish records status and returns cause (nil on success). Losing a race
// for the write-once status surfaces as *AlreadyCompletedError.
func (o *Orchestrator) finish(ctx context.Context, logger zerolog.Logger, res Result, status model.CompletionStatus, cause error) (Result, error) {
	if err := o.Queue.SetCompletionStatus(ctx, res.ReleaseID, status); err != nil {
		if errors.Is(err, queue.ErrCompletionStatusAlreadySet) {
			existing, gerr := o.Queue.GetCompletionStatus(ctx, res.ReleaseID)
			if gerr != nil {
				return res, gerr
			}
			res.Status = existing
			return res, &AlreadyCompletedError{ReleaseID: res.ReleaseID, Status: existing}
		}
		return res, err
	}
	res.Status = status
	logger.Info().
		Str(log.FieldEvent, "release.completion_status").
		Str(log.FieldStatus, string(status)).
		Int(log.FieldPass, res.Passes).
		Int(log.FieldCopied, res.Copied).
		Int(log.FieldEnqueued, res.Enqueued).
		Msg("recorded completion status")
	return res, cause
}

func outcome(err error) string {
	var (
		conflict    *AlreadyCompletedError
		convergence *ConvergenceError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyEnumeration):
		return "empty"
	case errors.As(err, &convergence):
		return "not_converged"
	case errors.As(err, &conflict), errors.Is(err, ErrLeaseHeld), errors.Is(err, ErrLeaseLost):
		return "conflict"
	default:
		return "error"
	}
}
