// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"github.com/ManuGH/contentrelease/internal/api"
	"github.com/ManuGH/contentrelease/internal/log"
)

// ServeCmd implements 'serve'.
type ServeCmd struct {
	Listen string `help:"Override the configured listen address."`
}

func (c *ServeCmd) Run(g *Globals, root *CLI) error {
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	cfg := api.Config{
		ListenAddr:        a.cfg.API.ListenAddr,
		RequestsPerMinute: a.cfg.API.RequestsPerMinute,
		AccessLog:         true,
	}
	if c.Listen != "" {
		cfg.ListenAddr = c.Listen
	}
	if a.cfg.Telemetry.Enabled {
		cfg.TracingService = a.cfg.LogService
	}
	return api.New(cfg, a.apiDeps(), log.WithComponent("api")).ListenAndServe(g.Ctx)
}
