// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/release"
)

// ExportCmd implements 'export'.
type ExportCmd struct {
	ReleaseID string `arg:"" name:"release-id" help:"Content release to export."`
	Dir       string `short:"d" required:"" type:"path" help:"Target directory."`
	Force     bool   `help:"Export even if the release did not render successfully."`
}

func (c *ExportCmd) Run(g *Globals, root *CLI) error {
	id, err := model.ParseReleaseID(c.ReleaseID)
	if err != nil {
		return err
	}
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	status, err := queue.New(a.client, a.keys).GetCompletionStatus(g.Ctx, id)
	if err != nil {
		return err
	}
	if status != model.CompletionSuccess && !c.Force {
		return fmt.Errorf("release %s has status %q; use --force to export anyway", id, status)
	}

	n, err := release.NewReader(a.client, a.keys).Export(g.Ctx, id, c.Dir)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str(log.FieldReleaseID, string(id)).
		Str(log.FieldPath, c.Dir).
		Int(log.FieldTotal, n).
		Msg("release exported")
	fmt.Fprintf(g.Stdout, "%s: %d documents written to %s\n", id, n, c.Dir)
	return nil
}
