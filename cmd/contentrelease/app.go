// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/contentrelease/internal/api"
	"github.com/ManuGH/contentrelease/internal/config"
	"github.com/ManuGH/contentrelease/internal/contentcache"
	"github.com/ManuGH/contentrelease/internal/enumeration"
	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/health"
	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/orchestrator"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/release"
	"github.com/ManuGH/contentrelease/internal/resilience"
	"github.com/ManuGH/contentrelease/internal/stats"
	"github.com/ManuGH/contentrelease/internal/telemetry"
	"github.com/ManuGH/contentrelease/internal/version"
	"github.com/ManuGH/contentrelease/internal/worker"
)

// app holds the process-wide resources shared by the commands.
type app struct {
	cfg     config.AppConfig
	client  *redis.Client
	keys    kv.Keys
	tracing *telemetry.Provider
	logger  zerolog.Logger
}

// setup loads configuration, reconfigures logging and connects to the store.
func setup(g *Globals, root *CLI) (*app, error) {
	ctx := g.Ctx
	cfg, err := config.NewLoader(root.Config, version.Version).Load()
	if err != nil {
		return nil, err
	}
	if root.LogLevel != "" {
		cfg.LogLevel = root.LogLevel
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  g.Stderr,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := log.WithComponent("cli")
	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")

	tracing, err := telemetry.NewProvider(ctx, cfg.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	client, err := kv.Connect(ctx, cfg.Redis.KV(), log.WithComponent("kv"))
	if err != nil {
		_ = tracing.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	return &app{
		cfg:     cfg,
		client:  client,
		keys:    kv.NewKeys(cfg.Redis.KeyPrefix),
		tracing: tracing,
		logger:  logger,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.client.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close store client")
	}
	if err := a.tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn().Err(err).Msg("failed to flush traces")
	}
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	oc := a.cfg.Orchestrator
	return &orchestrator.Orchestrator{
		Queue:       queue.New(a.client, a.keys),
		Cache:       contentcache.NewReader(a.client, a.keys),
		Writer:      release.NewWriter(a.client, a.keys),
		Errors:      errortracker.New(a.client, a.keys),
		Stats:       stats.New(a.client, a.keys),
		Enumeration: enumeration.New(a.client, a.keys),
		Leaser: orchestrator.RedisLeaser{
			Client: a.client,
			Keys:   a.keys,
			TTL:    oc.LeaseTTL,
		},
		MaxPasses:    oc.MaxPasses,
		PollInterval: oc.PollInterval,
		SampleEvery:  oc.SampleEvery,
		ClaimTimeout: oc.ClaimTimeout,
	}
}

func (a *app) workerPool(logger zerolog.Logger) *worker.Pool {
	wc := a.cfg.Worker
	p := &worker.Pool{
		Queue:           queue.New(a.client, a.keys),
		Cache:           contentcache.NewWriter(a.client, a.keys),
		Errors:          errortracker.New(a.client, a.keys),
		Renderer:        worker.NewHTTPRenderer(wc.RendererURL, wc.RenderTimeout),
		Logger:          logger,
		Concurrency:     wc.Concurrency,
		IdleWait:        wc.IdleWait,
		ClaimsPerSecond: wc.ClaimsPerSecond,
	}
	if wc.BreakerThreshold > 0 {
		p.Breaker = resilience.NewCircuitBreaker("renderer", wc.BreakerThreshold, wc.BreakerReset)
	}
	return p
}

func (a *app) apiDeps() api.Deps {
	hm := health.NewManager(version.String())
	hm.RegisterChecker(health.FuncChecker{CheckerName: "redis", Fn: func(ctx context.Context) error {
		return kv.HealthCheck(ctx, a.client)
	}})
	return api.Deps{
		Health:      hm,
		Queue:       queue.New(a.client, a.keys),
		Stats:       stats.New(a.client, a.keys),
		Errors:      errortracker.New(a.client, a.keys),
		Releases:    release.NewReader(a.client, a.keys),
		Enumeration: enumeration.New(a.client, a.keys),
	}
}
