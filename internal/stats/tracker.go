// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stats records rendering throughput and progress per release.
// The values are for display only and never feed back into control flow.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

// DefaultMaxDataPoints bounds the retained throughput series.
const DefaultMaxDataPoints = 1000

const (
	fieldRemaining = "remaining"
	fieldTotal     = "total"
)

// Snapshot is the read-only view used by the admin API.
type Snapshot struct {
	Progress            model.RenderingProgress `json:"progress"`
	RenderingsPerSecond []float64               `json:"renderingsPerSecond"`
}

// Tracker is the Redis-backed statistics store. Every update is mirrored into
// Prometheus gauges labelled by release.
type Tracker struct {
	client        redis.UniversalClient
	keys          kv.Keys
	maxDataPoints int64
}

// New returns a Tracker over client.
func New(client redis.UniversalClient, keys kv.Keys) *Tracker {
	return &Tracker{client: client, keys: keys, maxDataPoints: DefaultMaxDataPoints}
}

// Flush drops all statistics of a release.
func (t *Tracker) Flush(ctx context.Context, id model.ReleaseID) error {
	renderingsPerSecond.DeleteLabelValues(string(id))
	progressRemaining.DeleteLabelValues(string(id))
	progressTotal.DeleteLabelValues(string(id))

	err := t.client.Del(ctx, t.keys.StatsRenderingsPerSecond(id), t.keys.StatsProgress(id)).Err()
	if err != nil {
		return fmt.Errorf("flush statistics %s: %w", id, err)
	}
	return nil
}

// AddDataPointForRenderingsPerSecond appends one throughput sample.
func (t *Tracker) AddDataPointForRenderingsPerSecond(ctx context.Context, id model.ReleaseID, rate float64) error {
	renderingsPerSecond.WithLabelValues(string(id)).Set(rate)

	key := t.keys.StatsRenderingsPerSecond(id)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, strconv.FormatFloat(rate, 'f', -1, 64))
		pipe.LTrim(ctx, key, -t.maxDataPoints, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record renderings per second %s: %w", id, err)
	}
	return nil
}

// UpdateRenderingProgress replaces the progress snapshot.
func (t *Tracker) UpdateRenderingProgress(ctx context.Context, id model.ReleaseID, p model.RenderingProgress) error {
	progressRemaining.WithLabelValues(string(id)).Set(float64(p.RemainingJobs))
	progressTotal.WithLabelValues(string(id)).Set(float64(p.TotalJobs))

	err := t.client.HSet(ctx, t.keys.StatsProgress(id),
		fieldRemaining, p.RemainingJobs,
		fieldTotal, p.TotalJobs,
	).Err()
	if err != nil {
		return fmt.Errorf("update rendering progress %s: %w", id, err)
	}
	return nil
}

// Snapshot reads the current statistics of a release.
func (t *Tracker) Snapshot(ctx context.Context, id model.ReleaseID) (Snapshot, error) {
	var snap Snapshot

	fields, err := t.client.HGetAll(ctx, t.keys.StatsProgress(id)).Result()
	if err != nil {
		return snap, fmt.Errorf("read rendering progress %s: %w", id, err)
	}
	if snap.Progress.RemainingJobs, err = parseInt(fields[fieldRemaining]); err != nil {
		return snap, err
	}
	if snap.Progress.TotalJobs, err = parseInt(fields[fieldTotal]); err != nil {
		return snap, err
	}

	raw, err := t.client.LRange(ctx, t.keys.StatsRenderingsPerSecond(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return snap, fmt.Errorf("read renderings per second %s: %w", id, err)
	}
	snap.RenderingsPerSecond = make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return snap, fmt.Errorf("parse renderings per second %q: %w", s, err)
		}
		snap.RenderingsPerSecond = append(snap.RenderingsPerSecond, v)
	}
	return snap, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse progress value %q: %w", s, err)
	}
	return v, nil
}
