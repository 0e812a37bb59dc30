// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultKeyPrefix  = "crel"
	DefaultRedisAddr  = "localhost:6379"
	DefaultListenAddr = ":8080"
)

// Defaults returns the configuration used when neither file nor env set a
// value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "contentrelease",
		Redis: RedisConfig{
			Addr:        DefaultRedisAddr,
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
			KeyPrefix:   DefaultKeyPrefix,
		},
		Orchestrator: OrchestratorConfig{
			MaxPasses:    10,
			PollInterval: time.Second,
			SampleEvery:  10,
			LeaseTTL:     30 * time.Second,
			ClaimTimeout: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:      4,
			IdleWait:         500 * time.Millisecond,
			RenderTimeout:    30 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		API: APIConfig{
			ListenAddr:        DefaultListenAddr,
			RequestsPerMinute: 600,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
