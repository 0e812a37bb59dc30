// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"

	"github.com/ManuGH/contentrelease/internal/model"
)

// StatusCmd implements 'status'.
type StatusCmd struct {
	ReleaseID string `arg:"" name:"release-id" help:"Content release to inspect."`
	Errors    bool   `help:"Include the recorded rendering errors."`
}

func (c *StatusCmd) Run(g *Globals, root *CLI) error {
	id, err := model.ParseReleaseID(c.ReleaseID)
	if err != nil {
		return err
	}
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	deps := a.apiDeps()
	view, err := deps.Describe(g.Ctx, id)
	if err != nil {
		return err
	}

	out := map[string]any{"release": view}
	if c.Errors {
		list, err := deps.Errors.List(g.Ctx, id)
		if err != nil {
			return err
		}
		out["errors"] = list
	}
	enc := json.NewEncoder(g.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
