// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package errortracker accumulates rendering failures reported by workers.
// The orchestrator only flushes it; failures reach the convergence loop
// solely as cache entries that stay incomplete.
package errortracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

// RenderingError is one failed rendering attempt.
type RenderingError struct {
	NodeID     string         `json:"nodeId"`
	Workspace  string         `json:"workspace"`
	CacheKey   model.CacheKey `json:"cacheKey"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// ForJob builds a RenderingError for a failed job.
func ForJob(job model.RenderingJob, err error, at time.Time) RenderingError {
	return RenderingError{
		NodeID:     job.Node.NodeID,
		Workspace:  job.Node.Workspace,
		CacheKey:   job.Node.CacheKey(),
		Message:    err.Error(),
		OccurredAt: at.UTC(),
	}
}

// Tracker is the Redis-backed error list of each release.
type Tracker struct {
	client redis.UniversalClient
	keys   kv.Keys
	// MaxEntries caps the retained list; 0 keeps everything.
	MaxEntries int64
}

// New returns a Tracker over client.
func New(client redis.UniversalClient, keys kv.Keys) *Tracker {
	return &Tracker{client: client, keys: keys}
}

// Flush removes all recorded errors of a release.
func (t *Tracker) Flush(ctx context.Context, id model.ReleaseID) error {
	if err := t.client.Del(ctx, t.keys.Errors(id)).Err(); err != nil {
		return fmt.Errorf("flush errors %s: %w", id, err)
	}
	return nil
}

// Report appends e to the release's error list.
func (t *Tracker) Report(ctx context.Context, id model.ReleaseID, e RenderingError) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode rendering error: %w", err)
	}
	key := t.keys.Errors(id)
	_, err = t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if t.MaxEntries > 0 {
			pipe.LTrim(ctx, key, -t.MaxEntries, -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("report rendering error %s: %w", e.NodeID, err)
	}
	return nil
}

// Count returns the number of retained errors.
func (t *Tracker) Count(ctx context.Context, id model.ReleaseID) (int64, error) {
	n, err := t.client.LLen(ctx, t.keys.Errors(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count errors %s: %w", id, err)
	}
	return n, nil
}

// List returns retained errors, oldest first.
func (t *Tracker) List(ctx context.Context, id model.ReleaseID) ([]RenderingError, error) {
	raw, err := t.client.LRange(ctx, t.keys.Errors(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list errors %s: %w", id, err)
	}
	out := make([]RenderingError, 0, len(raw))
	for _, item := range raw {
		var e RenderingError
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode rendering error: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
