// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
)

// waitForDrain polls the queue every PollInterval until no job is queued and
// none is in progress. Every SampleEvery ticks it publishes throughput and
// progress. It returns early only when ctx is cancelled or the store fails.
//
// The queued count is read before the in-progress count: a claim moves a job
// atomically from queued to in-progress and nothing is enqueued while we
// wait, so once queued is zero the in-progress count can only fall. Stale
// claims are requeued before the counts are read, never between them.
func (o *Orchestrator) waitForDrain(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, total int64, keeper *leaseKeeper) error {
	ticker := o.Clock.NewTicker(o.PollInterval)
	defer ticker.Stop()

	lastSampleAt := o.Clock.Now()
	lastQueued := total
	ticks := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
		ticks++

		if err := o.requeueStaleClaims(ctx, logger, id); err != nil {
			return err
		}

		queued, err := o.Queue.NumberOfQueuedJobs(ctx, id)
		if err != nil {
			return err
		}
		inProgress, err := o.Queue.NumberOfRenderingsInProgress(ctx, id)
		if err != nil {
			return err
		}

		if err := keeper.renewIfDue(ctx); err != nil {
			return err
		}

		if ticks%o.SampleEvery == 0 {
			now := o.Clock.Now()
			rate := 0.0
			if elapsed := now.Sub(lastSampleAt).Seconds(); elapsed > 0 && lastQueued > queued {
				rate = float64(lastQueued-queued) / elapsed
			}
			lastSampleAt, lastQueued = now, queued

			o.publishRate(ctx, logger, id, rate)
			o.publishProgress(ctx, logger, id, model.RenderingProgress{RemainingJobs: queued + inProgress, TotalJobs: total})
			logger.Info().
				Int64(log.FieldQueued, queued).
				Int64(log.FieldInProgress, inProgress).
				Float64(log.FieldRate, rate).
				Msg("rendering progress")
		}

		if queued == 0 && inProgress == 0 {
			o.publishProgress(ctx, logger, id, model.RenderingProgress{RemainingJobs: 0, TotalJobs: total})
			return nil
		}
	}
}

func (o *Orchestrator) requeueStaleClaims(ctx context.Context, logger zerolog.Logger, id model.ReleaseID) error {
	r, ok := o.Queue.(StaleClaimRequeuer)
	if !ok || o.ClaimTimeout <= 0 {
		return nil
	}
	n, err := r.RequeueStaleClaims(ctx, id, o.ClaimTimeout)
	if err != nil {
		return err
	}
	if n > 0 {
		staleClaimsRequeued.Add(float64(n))
		logger.Warn().Int("requeued", n).Dur("claim_timeout", o.ClaimTimeout).Msg("requeued stale rendering claims")
	}
	return nil
}

func (o *Orchestrator) publishRate(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, rate float64) {
	if err := o.Stats.AddDataPointForRenderingsPerSecond(ctx, id, rate); err != nil {
		logger.Warn().Err(err).Msg("failed to record renderings per second")
	}
}

func (o *Orchestrator) publishProgress(ctx context.Context, logger zerolog.Logger, id model.ReleaseID, p model.RenderingProgress) {
	if err := o.Stats.UpdateRenderingProgress(ctx, id, p); err != nil {
		logger.Warn().Err(err).Msg("failed to update rendering progress")
	}
}
