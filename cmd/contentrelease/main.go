// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command contentrelease renders, inspects and exports content releases.
//
// Every command exits 0 on success and 1 on any failure.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/version"
)

// CLI is the command tree.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path (YAML)." type:"path" env:"CREL_CONFIG"`
	LogLevel string           `name:"log-level" help:"Override the configured log level."`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit."`

	Render    RenderCmd    `cmd:"" help:"Render a content release until every page is complete."`
	Status    StatusCmd    `cmd:"" help:"Print the state of a content release as JSON."`
	Enumerate EnumerateCmd `cmd:"" help:"Freeze the page list of a content release from a YAML file."`
	Work      WorkCmd      `cmd:"" help:"Consume the rendering queue of a release through a render service."`
	Export    ExportCmd    `cmd:"" help:"Write the documents of a finished release to a directory."`
	Serve     ServeCmd     `cmd:"" help:"Serve the admin API."`
}

// Globals are bound into every command's Run.
type Globals struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log.Configure(log.Config{Level: "info", Output: stderr, Version: version.Version})

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("contentrelease"),
		kong.Description("Content release render orchestration."),
		kong.Vars{"version": version.String()},
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	if err := kctx.Run(&Globals{Ctx: ctx, Stdout: stdout, Stderr: stderr}, &cli); err != nil {
		logger := log.WithComponent("cli")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "command.failed").
			Str("command", kctx.Command()).
			Msg("command failed")
		return 1
	}
	return 0
}
