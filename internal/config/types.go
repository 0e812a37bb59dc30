// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/telemetry"
)

// AppConfig is the merged configuration of one process.
type AppConfig struct {
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	Redis        RedisConfig        `yaml:"redis"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Worker       WorkerConfig       `yaml:"worker"`
	API          APIConfig          `yaml:"api"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Version is set from the binary, never from file or env.
	Version string `yaml:"-"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	// KeyPrefix namespaces every key this process touches.
	KeyPrefix string `yaml:"keyPrefix"`
}

type OrchestratorConfig struct {
	MaxPasses    int           `yaml:"maxPasses"`
	PollInterval time.Duration `yaml:"pollInterval"`
	// SampleEvery is the number of poll ticks between statistics samples.
	SampleEvery int           `yaml:"sampleEvery"`
	LeaseTTL    time.Duration `yaml:"leaseTTL"`
	// ClaimTimeout requeues jobs claimed but not acknowledged for this long; 0 disables it.
	ClaimTimeout time.Duration `yaml:"claimTimeout"`
}

type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	IdleWait        time.Duration `yaml:"idleWait"`
	ClaimsPerSecond float64       `yaml:"claimsPerSecond"`
	// RendererURL is the render service the work command posts jobs to.
	RendererURL   string        `yaml:"rendererURL"`
	RenderTimeout time.Duration `yaml:"renderTimeout"`
	// BreakerThreshold consecutive render failures open the breaker; 0 disables it.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RequestsPerMinute per client IP; 0 disables the limit.
	RequestsPerMinute int `yaml:"requestsPerMinute"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// KV returns the connection settings for kv.Connect.
func (r RedisConfig) KV() kv.Config {
	return kv.Config{
		URL:         r.URL,
		Addr:        r.Addr,
		Password:    r.Password,
		DB:          r.DB,
		PoolSize:    r.PoolSize,
		DialTimeout: r.DialTimeout,
	}
}

// TelemetryConfig returns the tracer provider settings.
func (c AppConfig) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.LogService,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.ExporterType,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

// String renders the config for logs with secrets masked.
func (c AppConfig) String() string {
	redisURL := c.Redis.URL
	if redisURL != "" {
		redisURL = maskURL(redisURL)
	}
	return fmt.Sprintf(
		"AppConfig{LogLevel:%s Redis:{URL:%s Addr:%s Password:%s DB:%d KeyPrefix:%s} "+
			"Orchestrator:{MaxPasses:%d PollInterval:%s SampleEvery:%d LeaseTTL:%s ClaimTimeout:%s} "+
			"Worker:{Concurrency:%d IdleWait:%s ClaimsPerSecond:%g RendererURL:%s} API:{ListenAddr:%s RequestsPerMinute:%d} "+
			"Telemetry:{Enabled:%t Exporter:%s Endpoint:%s}}",
		c.LogLevel, redisURL, c.Redis.Addr, maskSecret(c.Redis.Password), c.Redis.DB, c.Redis.KeyPrefix,
		c.Orchestrator.MaxPasses, c.Orchestrator.PollInterval, c.Orchestrator.SampleEvery, c.Orchestrator.LeaseTTL, c.Orchestrator.ClaimTimeout,
		c.Worker.Concurrency, c.Worker.IdleWait, c.Worker.ClaimsPerSecond, maskURL(c.Worker.RendererURL), c.API.ListenAddr, c.API.RequestsPerMinute,
		c.Telemetry.Enabled, c.Telemetry.ExporterType, c.Telemetry.Endpoint,
	)
}
