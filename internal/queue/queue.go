// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue implements the rendering queue shared between the
// orchestrator and the rendering workers.
//
// Per release the queue keeps a pending list of jobs and an in-progress hash
// of claimed jobs keyed by claim token. A claim moves a job from pending to
// in-progress in one Lua script, so at every instant a job is counted in
// exactly one of the two structures. The orchestrator relies on both counts
// reaching zero as the only signal that a pass has drained.
//
// Each claim is also stamped in a sorted set so claims of workers that died
// before acknowledging can be moved back to pending.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

var (
	// ErrCompletionStatusAlreadySet is returned when a second terminal status
	// is written for a release.
	ErrCompletionStatusAlreadySet = errors.New("completion status already set")
	// ErrInvalidCompletionStatus rejects writing the unset status.
	ErrInvalidCompletionStatus = errors.New("completion status must be success or failed")
	// ErrUnknownClaim is returned when acknowledging a claim that is not in progress.
	ErrUnknownClaim = errors.New("unknown or already acknowledged claim")
)

// claimScript atomically pops the oldest pending job and records it as in
// progress under the supplied token.
// KEYS[1] = pending list, KEYS[2] = in-progress hash, KEYS[3] = claim stamps
// ARGV[1] = claim token, ARGV[2] = claim time in unix milliseconds
var claimScript = redis.NewScript(`
local job = redis.call('RPOP', KEYS[1])
if not job then
	return false
end
redis.call('HSET', KEYS[2], ARGV[1], job)
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
return job
`)

// ackScript drops a claim and its stamp; returns 0 for an unknown token.
// KEYS[1] = in-progress hash, KEYS[2] = claim stamps, ARGV[1] = claim token
var ackScript = redis.NewScript(`
redis.call('ZREM', KEYS[2], ARGV[1])
return redis.call('HDEL', KEYS[1], ARGV[1])
`)

// requeueScript moves claims stamped at or before the cutoff back to the
// head of the pending list.
// KEYS[1] = pending list, KEYS[2] = in-progress hash, KEYS[3] = claim stamps
// ARGV[1] = cutoff in unix milliseconds
var requeueScript = redis.NewScript(`
local tokens = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
local moved = 0
for _, token in ipairs(tokens) do
	local job = redis.call('HGET', KEYS[2], token)
	if job then
		redis.call('HDEL', KEYS[2], token)
		redis.call('RPUSH', KEYS[1], job)
		moved = moved + 1
	end
	redis.call('ZREM', KEYS[3], token)
end
return moved
`)

// Claim is a job taken by a worker; Token acknowledges it.
type Claim struct {
	Token string
	Job   model.RenderingJob
}

// RedisQueue is the Redis-backed rendering queue.
type RedisQueue struct {
	client redis.UniversalClient
	keys   kv.Keys
	clock  clockwork.Clock
}

// New returns a queue over client using keys for namespacing.
func New(client redis.UniversalClient, keys kv.Keys) *RedisQueue {
	return &RedisQueue{client: client, keys: keys, clock: clockwork.NewRealClock()}
}

// WithClock sets the clock used to stamp claims.
func (q *RedisQueue) WithClock(c clockwork.Clock) *RedisQueue {
	q.clock = c
	return q
}

// Flush clears pending and in-progress jobs of a release. The completion
// status is not touched.
func (q *RedisQueue) Flush(ctx context.Context, id model.ReleaseID) error {
	if err := q.client.Del(ctx, q.keys.QueuePending(id), q.keys.QueueInProgress(id), q.keys.QueueClaims(id)).Err(); err != nil {
		return fmt.Errorf("flush queue %s: %w", id, err)
	}
	return nil
}

// AppendRenderingJob enqueues node for rendering. Duplicates are tolerated;
// rendering is idempotent on the worker side.
func (q *RedisQueue) AppendRenderingJob(ctx context.Context, id model.ReleaseID, node model.EnumeratedNode) error {
	payload, err := json.Marshal(model.RenderingJob{ReleaseID: id, Node: node})
	if err != nil {
		return fmt.Errorf("encode rendering job: %w", err)
	}
	if err := q.client.LPush(ctx, q.keys.QueuePending(id), payload).Err(); err != nil {
		return fmt.Errorf("append rendering job %s: %w", node.NodeID, err)
	}
	return nil
}

// NumberOfQueuedJobs counts jobs not yet claimed by a worker.
func (q *RedisQueue) NumberOfQueuedJobs(ctx context.Context, id model.ReleaseID) (int64, error) {
	n, err := q.client.LLen(ctx, q.keys.QueuePending(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count queued jobs %s: %w", id, err)
	}
	return n, nil
}

// NumberOfRenderingsInProgress counts claimed jobs not yet acknowledged.
func (q *RedisQueue) NumberOfRenderingsInProgress(ctx context.Context, id model.ReleaseID) (int64, error) {
	n, err := q.client.HLen(ctx, q.keys.QueueInProgress(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count renderings in progress %s: %w", id, err)
	}
	return n, nil
}

// ClaimJob takes the oldest pending job. ok is false when nothing is queued.
func (q *RedisQueue) ClaimJob(ctx context.Context, id model.ReleaseID) (claim Claim, ok bool, err error) {
	token := uuid.NewString()
	raw, err := claimScript.Run(ctx, q.client,
		[]string{q.keys.QueuePending(id), q.keys.QueueInProgress(id), q.keys.QueueClaims(id)},
		token, q.clock.Now().UnixMilli()).Text()
	if errors.Is(err, redis.Nil) {
		return Claim{}, false, nil
	}
	if err != nil {
		return Claim{}, false, fmt.Errorf("claim job %s: %w", id, err)
	}

	var job model.RenderingJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Drop the undecodable claim so it cannot block the pass forever.
		_ = ackScript.Run(ctx, q.client, []string{q.keys.QueueInProgress(id), q.keys.QueueClaims(id)}, token).Err()
		return Claim{}, false, fmt.Errorf("decode claimed job: %w", err)
	}
	return Claim{Token: token, Job: job}, true, nil
}

// AcknowledgeJob marks a claimed job as finished, whether it rendered or failed.
// A claim that was requeued as stale can no longer be acknowledged.
func (q *RedisQueue) AcknowledgeJob(ctx context.Context, id model.ReleaseID, token string) error {
	n, err := ackScript.Run(ctx, q.client,
		[]string{q.keys.QueueInProgress(id), q.keys.QueueClaims(id)}, token).Int()
	if err != nil {
		return fmt.Errorf("acknowledge job %s: %w", token, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownClaim, token)
	}
	return nil
}

// RequeueStaleClaims moves jobs claimed at least olderThan ago back to
// pending, next in line for a claim, and returns how many moved. Each job
// stays counted in exactly one of pending and in-progress throughout.
func (q *RedisQueue) RequeueStaleClaims(ctx context.Context, id model.ReleaseID, olderThan time.Duration) (int, error) {
	cutoff := q.clock.Now().Add(-olderThan)
	n, err := requeueScript.Run(ctx, q.client,
		[]string{q.keys.QueuePending(id), q.keys.QueueInProgress(id), q.keys.QueueClaims(id)},
		cutoff.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue stale claims %s: %w", id, err)
	}
	return n, nil
}

// GetCompletionStatus reads the terminal flag; CompletionUnset means the
// release is in progress or was never rendered.
func (q *RedisQueue) GetCompletionStatus(ctx context.Context, id model.ReleaseID) (model.CompletionStatus, error) {
	raw, err := q.client.Get(ctx, q.keys.CompletionStatus(id)).Result()
	if errors.Is(err, redis.Nil) {
		return model.CompletionUnset, nil
	}
	if err != nil {
		return model.CompletionUnset, fmt.Errorf("read completion status %s: %w", id, err)
	}
	return model.ParseCompletionStatus(raw)
}

// SetCompletionStatus records the terminal flag exactly once. The write is a
// single SET NX, so a status once observed never changes.
func (q *RedisQueue) SetCompletionStatus(ctx context.Context, id model.ReleaseID, status model.CompletionStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %q", ErrInvalidCompletionStatus, status)
	}
	ok, err := q.client.SetNX(ctx, q.keys.CompletionStatus(id), string(status), 0).Result()
	if err != nil {
		return fmt.Errorf("write completion status %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: release %s", ErrCompletionStatusAlreadySet, id)
	}
	return nil
}
