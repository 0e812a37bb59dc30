// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/contentrelease/internal/validate"
)

// Validate reports every invalid field of cfg in one error.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("LogLevel", strings.ToLower(cfg.LogLevel), validate.LogLevels)

	if cfg.Redis.URL != "" {
		v.URL("Redis.URL", cfg.Redis.URL, []string{"redis", "rediss"})
	} else {
		v.HostPort("Redis.Addr", cfg.Redis.Addr)
	}
	v.Range("Redis.DB", cfg.Redis.DB, 0, 15)
	v.Positive("Redis.PoolSize", cfg.Redis.PoolSize)
	v.NotEmpty("Redis.KeyPrefix", cfg.Redis.KeyPrefix)
	if strings.ContainsAny(cfg.Redis.KeyPrefix, " \t\n") {
		v.AddError("Redis.KeyPrefix", "must not contain whitespace", cfg.Redis.KeyPrefix)
	}

	v.Range("Orchestrator.MaxPasses", cfg.Orchestrator.MaxPasses, 1, 100)
	v.DurationRange("Orchestrator.PollInterval", cfg.Orchestrator.PollInterval, time.Millisecond, time.Minute)
	v.Range("Orchestrator.SampleEvery", cfg.Orchestrator.SampleEvery, 1, 1000)
	v.DurationRange("Orchestrator.LeaseTTL", cfg.Orchestrator.LeaseTTL, time.Second, time.Hour)
	if cfg.Orchestrator.LeaseTTL <= cfg.Orchestrator.PollInterval {
		v.AddError("Orchestrator.LeaseTTL",
			fmt.Sprintf("must exceed PollInterval (%s) so the lease is renewed before it expires", cfg.Orchestrator.PollInterval),
			cfg.Orchestrator.LeaseTTL)
	}
	if cfg.Orchestrator.ClaimTimeout != 0 {
		v.DurationRange("Orchestrator.ClaimTimeout", cfg.Orchestrator.ClaimTimeout, time.Second, 24*time.Hour)
		if cfg.Orchestrator.ClaimTimeout <= cfg.Worker.RenderTimeout {
			v.AddError("Orchestrator.ClaimTimeout",
				fmt.Sprintf("must exceed Worker.RenderTimeout (%s) so live renders are not requeued", cfg.Worker.RenderTimeout),
				cfg.Orchestrator.ClaimTimeout)
		}
	}

	v.Range("Worker.Concurrency", cfg.Worker.Concurrency, 1, 256)
	v.DurationRange("Worker.IdleWait", cfg.Worker.IdleWait, time.Millisecond, time.Minute)
	v.FloatRange("Worker.ClaimsPerSecond", cfg.Worker.ClaimsPerSecond, 0, 1e6)
	if cfg.Worker.RendererURL != "" {
		v.URL("Worker.RendererURL", cfg.Worker.RendererURL, []string{"http", "https"})
	}
	v.DurationRange("Worker.RenderTimeout", cfg.Worker.RenderTimeout, time.Second, time.Hour)
	v.Range("Worker.BreakerThreshold", cfg.Worker.BreakerThreshold, 0, 1000)
	if cfg.Worker.BreakerThreshold > 0 {
		v.DurationRange("Worker.BreakerReset", cfg.Worker.BreakerReset, time.Second, time.Hour)
	}

	v.HostPort("API.ListenAddr", cfg.API.ListenAddr)
	v.Range("API.RequestsPerMinute", cfg.API.RequestsPerMinute, 0, 1_000_000)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
