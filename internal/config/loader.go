// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the loader.
const (
	EnvLogLevel          = "CREL_LOG_LEVEL"
	EnvLogService        = "CREL_LOG_SERVICE"
	EnvRedisURL          = "CREL_REDIS_URL"
	EnvRedisAddr         = "CREL_REDIS_ADDR"
	EnvRedisPassword     = "CREL_REDIS_PASSWORD"
	EnvRedisDB           = "CREL_REDIS_DB"
	EnvRedisPoolSize     = "CREL_REDIS_POOL_SIZE"
	EnvKeyPrefix         = "CREL_KEY_PREFIX"
	EnvMaxPasses         = "CREL_MAX_PASSES"
	EnvPollInterval      = "CREL_POLL_INTERVAL"
	EnvSampleEvery       = "CREL_SAMPLE_EVERY"
	EnvLeaseTTL          = "CREL_LEASE_TTL"
	EnvClaimTimeout      = "CREL_CLAIM_TIMEOUT"
	EnvWorkerConcurrency = "CREL_WORKER_CONCURRENCY"
	EnvWorkerIdleWait    = "CREL_WORKER_IDLE_WAIT"
	EnvWorkerClaimRate   = "CREL_WORKER_CLAIMS_PER_SECOND"
	EnvRendererURL       = "CREL_WORKER_RENDERER_URL"
	EnvRenderTimeout     = "CREL_WORKER_RENDER_TIMEOUT"
	EnvBreakerThreshold  = "CREL_WORKER_BREAKER_THRESHOLD"
	EnvBreakerReset      = "CREL_WORKER_BREAKER_RESET"
	EnvAPIListen         = "CREL_API_LISTEN"
	EnvAPIRateLimit      = "CREL_API_REQUESTS_PER_MINUTE"
	EnvOTelEnabled       = "CREL_OTEL_ENABLED"
	EnvOTelExporter      = "CREL_OTEL_EXPORTER"
	EnvOTelEndpoint      = "CREL_OTEL_ENDPOINT"
	EnvOTelSamplingRate  = "CREL_OTEL_SAMPLING_RATE"
	EnvEnvironment       = "CREL_ENVIRONMENT"
)

// ErrUnknownConfigField classifies strict YAML failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader merges defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string
	version    string
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load applies defaults, then the file, then env, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg so keys missing from the file keep their
// defaults.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = ParseString(EnvLogService, cfg.LogService)

	cfg.Redis.URL = ParseString(EnvRedisURL, cfg.Redis.URL)
	cfg.Redis.Addr = ParseString(EnvRedisAddr, cfg.Redis.Addr)
	cfg.Redis.Password = ParseString(EnvRedisPassword, cfg.Redis.Password)
	cfg.Redis.DB = ParseInt(EnvRedisDB, cfg.Redis.DB)
	cfg.Redis.PoolSize = ParseInt(EnvRedisPoolSize, cfg.Redis.PoolSize)
	cfg.Redis.KeyPrefix = ParseString(EnvKeyPrefix, cfg.Redis.KeyPrefix)

	cfg.Orchestrator.MaxPasses = ParseInt(EnvMaxPasses, cfg.Orchestrator.MaxPasses)
	cfg.Orchestrator.PollInterval = ParseDuration(EnvPollInterval, cfg.Orchestrator.PollInterval)
	cfg.Orchestrator.SampleEvery = ParseInt(EnvSampleEvery, cfg.Orchestrator.SampleEvery)
	cfg.Orchestrator.LeaseTTL = ParseDuration(EnvLeaseTTL, cfg.Orchestrator.LeaseTTL)
	cfg.Orchestrator.ClaimTimeout = ParseDuration(EnvClaimTimeout, cfg.Orchestrator.ClaimTimeout)

	cfg.Worker.Concurrency = ParseInt(EnvWorkerConcurrency, cfg.Worker.Concurrency)
	cfg.Worker.IdleWait = ParseDuration(EnvWorkerIdleWait, cfg.Worker.IdleWait)
	cfg.Worker.ClaimsPerSecond = ParseFloat(EnvWorkerClaimRate, cfg.Worker.ClaimsPerSecond)
	cfg.Worker.RendererURL = ParseString(EnvRendererURL, cfg.Worker.RendererURL)
	cfg.Worker.RenderTimeout = ParseDuration(EnvRenderTimeout, cfg.Worker.RenderTimeout)
	cfg.Worker.BreakerThreshold = ParseInt(EnvBreakerThreshold, cfg.Worker.BreakerThreshold)
	cfg.Worker.BreakerReset = ParseDuration(EnvBreakerReset, cfg.Worker.BreakerReset)

	cfg.API.ListenAddr = ParseString(EnvAPIListen, cfg.API.ListenAddr)
	cfg.API.RequestsPerMinute = ParseInt(EnvAPIRateLimit, cfg.API.RequestsPerMinute)

	cfg.Telemetry.Enabled = ParseBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString(EnvOTelExporter, cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOTelSamplingRate, cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvEnvironment, cfg.Telemetry.Environment)
}
