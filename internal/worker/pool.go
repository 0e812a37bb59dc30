// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package worker consumes the rendering queue of a release. Page rendering
// itself is a capability supplied by the embedding program through Renderer;
// the pool only claims jobs, stores the results in the content cache, reports
// failures and acknowledges each job so the orchestrator's counters drain.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/resilience"
	"github.com/ManuGH/contentrelease/internal/telemetry"
)

// Renderer renders one page. An incomplete document is stored as-is and
// will be queued again by the next pass.
type Renderer interface {
	Render(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error)

func (f RendererFunc) Render(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
	return f(ctx, job)
}

// JobQueue is the worker-side view of the rendering queue.
type JobQueue interface {
	ClaimJob(ctx context.Context, id model.ReleaseID) (queue.Claim, bool, error)
	AcknowledgeJob(ctx context.Context, id model.ReleaseID, token string) error
	GetCompletionStatus(ctx context.Context, id model.ReleaseID) (model.CompletionStatus, error)
}

// CacheWriter stores render results where the orchestrator looks for them.
type CacheWriter interface {
	StoreRendering(ctx context.Context, key model.CacheKey, doc model.RenderedDocument) error
}

// ErrorReporter records failed renders.
type ErrorReporter interface {
	Report(ctx context.Context, id model.ReleaseID, e errortracker.RenderingError) error
}

const (
	DefaultConcurrency = 4
	DefaultIdleWait    = 500 * time.Millisecond

	ackTimeout = 5 * time.Second
	tracerName = "contentrelease.worker"
)

// Pool runs Concurrency workers against one release until ctx is cancelled
// or the release records a completion status.
type Pool struct {
	Queue    JobQueue
	Cache    CacheWriter
	Errors   ErrorReporter
	Renderer Renderer
	Logger   zerolog.Logger
	Clock    clockwork.Clock

	Concurrency int
	// IdleWait is the pause after finding the queue empty.
	IdleWait time.Duration
	// ClaimsPerSecond limits claims across the pool; 0 means unlimited.
	ClaimsPerSecond float64
	// Breaker pauses claiming while the renderer keeps failing. Optional.
	Breaker *resilience.CircuitBreaker
}

// Run blocks until the release is finished, ctx is cancelled, or the queue
// fails. Cancellation is a normal stop and returns nil.
func (p *Pool) Run(ctx context.Context, id model.ReleaseID) error {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if p.IdleWait <= 0 {
		p.IdleWait = DefaultIdleWait
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	var limiter *rate.Limiter
	if p.ClaimsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.ClaimsPerSecond), concurrency)
	}

	logger := p.Logger.With().Str(log.FieldReleaseID, string(id)).Logger()
	logger.Info().Int("concurrency", concurrency).Msg("worker pool started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return p.loop(gctx, logger, id, limiter)
		})
	}
	err := g.Wait()
	logger.Info().Err(err).Msg("worker pool stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, limiter *rate.Limiter) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if p.Breaker != nil && !p.Breaker.Ready() {
			if stop, err := p.pause(ctx, id); stop {
				return err
			}
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		claim, ok, err := p.Queue.ClaimJob(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("claim: %w", err)
		}
		if !ok {
			if stop, err := p.pause(ctx, id); stop {
				return err
			}
			continue
		}

		p.process(ctx, logger, id, claim)
	}
}

// pause stops the worker once the release has a completion status and
// otherwise waits IdleWait.
func (p *Pool) pause(ctx context.Context, id model.ReleaseID) (bool, error) {
	done, err := p.finished(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		return true, err
	}
	if done {
		return true, nil
	}
	select {
	case <-ctx.Done():
		return true, nil
	case <-p.Clock.After(p.IdleWait):
		return false, nil
	}
}

func (p *Pool) finished(ctx context.Context, id model.ReleaseID) (bool, error) {
	status, err := p.Queue.GetCompletionStatus(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read completion status: %w", err)
	}
	return status.IsTerminal(), nil
}

// process renders one claimed job. The claim is always acknowledged, even
// when ctx is cancelled mid-render, so the in-progress count can drain.
func (p *Pool) process(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, claim queue.Claim) {
	job := claim.Job
	key := job.Node.CacheKey()
	jobLogger := logger.With().
		Str(log.FieldNodeID, job.Node.NodeID).
		Str(log.FieldCacheKey, string(key)).
		Logger()

	ctx, span := telemetry.Start(ctx, tracerName, "render_job",
		telemetry.NodeAttributes(job.Node.NodeID, job.Node.Workspace, string(key))...)
	defer span.End()

	defer func() {
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
		defer cancel()
		if err := p.Queue.AcknowledgeJob(ackCtx, id, claim.Token); err != nil {
			jobLogger.Warn().Err(err).Msg("failed to acknowledge rendering job")
		}
	}()

	doc, err := p.guardedRender(ctx, job)
	if err != nil {
		jobsProcessed.WithLabelValues("failed").Inc()
		span.SetAttributes(telemetry.ErrorAttributes("render")...)
		jobLogger.Warn().Err(err).Msg("rendering failed")
		if rerr := p.Errors.Report(ctx, id, errortracker.ForJob(job, err, p.Clock.Now())); rerr != nil {
			jobLogger.Error().Err(rerr).Msg("failed to report rendering error")
		}
		return
	}

	if err := p.Cache.StoreRendering(ctx, key, doc); err != nil {
		jobsProcessed.WithLabelValues("failed").Inc()
		jobLogger.Error().Err(err).Msg("failed to store rendering")
		return
	}
	if doc.Complete {
		jobsProcessed.WithLabelValues("complete").Inc()
	} else {
		jobsProcessed.WithLabelValues("partial").Inc()
	}
	jobLogger.Debug().Bool("complete", doc.Complete).Str(log.FieldURL, doc.URL).Msg("rendered")
}

// guardedRender runs render through the breaker when one is configured. A
// job claimed while the breaker is open fails without reaching the renderer.
func (p *Pool) guardedRender(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
	if p.Breaker == nil {
		return p.timedRender(ctx, job)
	}
	var doc model.RenderedDocument
	err := p.Breaker.Execute(func() error {
		var err error
		doc, err = p.timedRender(ctx, job)
		return err
	})
	return doc, err
}

func (p *Pool) timedRender(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
	start := p.Clock.Now()
	doc, err := p.render(ctx, job)
	renderDuration.Observe(p.Clock.Since(start).Seconds())
	return doc, err
}

// render calls the Renderer, converting a panic into an error.
func (p *Pool) render(ctx context.Context, job model.RenderingJob) (doc model.RenderedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return p.Renderer.Render(ctx, job)
}
