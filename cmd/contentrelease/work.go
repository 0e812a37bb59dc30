// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"time"

	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
)

// WorkCmd implements 'work'.
type WorkCmd struct {
	ReleaseID   string `arg:"" name:"release-id" help:"Content release whose queue to consume."`
	RendererURL string `name:"renderer-url" help:"Render service endpoint; overrides the configured one."`
	Concurrency int    `name:"concurrency" help:"Override the configured number of workers."`
}

func (c *WorkCmd) Run(g *Globals, root *CLI) error {
	id, err := model.ParseReleaseID(c.ReleaseID)
	if err != nil {
		return err
	}
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	if c.RendererURL != "" {
		a.cfg.Worker.RendererURL = c.RendererURL
	}
	if c.Concurrency > 0 {
		a.cfg.Worker.Concurrency = c.Concurrency
	}
	if a.cfg.Worker.RendererURL == "" {
		return errors.New("no renderer configured: set --renderer-url or worker.rendererURL")
	}

	ctx := log.ContextWithReleaseID(g.Ctx, string(id))
	pool := a.workerPool(log.WithComponentFromContext(ctx, "worker"))

	start := time.Now()
	if err := pool.Run(ctx, id); err != nil {
		return err
	}
	a.logger.Info().
		Str(log.FieldReleaseID, string(id)).
		Dur("elapsed", time.Since(start)).
		Msg("worker pool finished")
	return nil
}
