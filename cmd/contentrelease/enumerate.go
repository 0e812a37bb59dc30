// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/contentrelease/internal/enumeration"
	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
)

// EnumerateCmd implements 'enumerate'.
type EnumerateCmd struct {
	ReleaseID string `arg:"" name:"release-id" help:"Content release to enumerate."`
	File      string `short:"f" required:"" type:"existingfile" help:"YAML file listing the release's nodes."`
}

// nodeFile is the layout of the enumeration input:
//
//	nodes:
//	  - nodeId: home
//	    workspace: live
//	    dimensions: {language: en}
type nodeFile struct {
	Nodes []model.EnumeratedNode `yaml:"nodes"`
}

func readNodes(path string) ([]model.EnumeratedNode, error) {
	// #nosec G304 -- the path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f nodeFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Nodes, nil
}

func (c *EnumerateCmd) Run(g *Globals, root *CLI) error {
	id, err := model.ParseReleaseID(c.ReleaseID)
	if err != nil {
		return err
	}
	nodes, err := readNodes(c.File)
	if err != nil {
		return err
	}
	a, err := setup(g, root)
	if err != nil {
		return err
	}
	defer a.Close(g.Ctx)

	n, err := enumeration.New(a.client, a.keys).Freeze(g.Ctx, id, nodes)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str(log.FieldReleaseID, string(id)).
		Int(log.FieldTotal, n).
		Msg("enumeration frozen")
	fmt.Fprintf(g.Stdout, "%s: %d nodes\n", id, n)
	return nil
}
