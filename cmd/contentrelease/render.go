// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"

	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/orchestrator"
)

// RenderCmd implements 'render'.
type RenderCmd struct {
	ReleaseID string `arg:"" name:"release-id" help:"Content release to render."`
	MaxPasses int    `name:"max-passes" help:"Override the configured pass bound."`
}

func (c *RenderCmd) Run(g *Globals, root *CLI) error {
	id, err := model.ParseReleaseID(c.ReleaseID)
	if err != nil {
		return err
	}
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	orch := a.orchestrator()
	if c.MaxPasses > 0 {
		orch.MaxPasses = c.MaxPasses
	}

	ctx := log.ContextWithReleaseID(g.Ctx, string(id))
	logger := log.WithComponentFromContext(ctx, "orchestrator")

	res, err := orch.RenderContentRelease(ctx, id, logger)
	if err != nil {
		evt := logger.Error().Err(err).
			Int(log.FieldPass, res.Passes).
			Int(log.FieldCopied, res.Copied).
			Int(log.FieldEnqueued, res.Enqueued)
		var already *orchestrator.AlreadyCompletedError
		var conv *orchestrator.ConvergenceError
		switch {
		case errors.As(err, &already):
			evt.Str(log.FieldStatus, string(already.Status)).Msg("release already completed")
		case errors.As(err, &conv):
			evt.Int("pending", conv.Pending).Msg("release did not converge")
		case errors.Is(err, orchestrator.ErrEmptyEnumeration):
			evt.Msg("release has no pages")
		case errors.Is(err, orchestrator.ErrLeaseHeld):
			evt.Msg("release is rendered elsewhere")
		case errors.Is(err, orchestrator.ErrLeaseLost):
			evt.Msg("render lease lapsed mid-run")
		default:
			evt.Msg("render aborted")
		}
		return err
	}

	logger.Info().
		Str(log.FieldStatus, string(res.Status)).
		Int(log.FieldPass, res.Passes).
		Int(log.FieldCopied, res.Copied).
		Int(log.FieldEnqueued, res.Enqueued).
		Msg("release rendered")
	return nil
}
