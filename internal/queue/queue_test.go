// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/kv/kvtest"
	"github.com/ManuGH/contentrelease/internal/model"
)

func newQueue(t *testing.T) *RedisQueue {
	t.Helper()
	_, client := kvtest.New(t)
	return New(client, kv.NewKeys("test"))
}

func node(id string) model.EnumeratedNode {
	return model.EnumeratedNode{NodeID: id, Workspace: "live"}
}

func counts(t *testing.T, q *RedisQueue, id model.ReleaseID) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	queued, err := q.NumberOfQueuedJobs(ctx, id)
	require.NoError(t, err)
	inProgress, err := q.NumberOfRenderingsInProgress(ctx, id)
	require.NoError(t, err)
	return queued, inProgress
}

func TestQueue_ClaimAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("a")))
	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("b")))

	queued, inProgress := counts(t, q, "r1")
	assert.Equal(t, int64(2), queued)
	assert.Equal(t, int64(0), inProgress)

	claim, ok, err := q.ClaimJob(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", claim.Job.Node.NodeID, "jobs are claimed in FIFO order")
	assert.Equal(t, model.ReleaseID("r1"), claim.Job.ReleaseID)

	queued, inProgress = counts(t, q, "r1")
	assert.Equal(t, int64(1), queued)
	assert.Equal(t, int64(1), inProgress)

	require.NoError(t, q.AcknowledgeJob(ctx, "r1", claim.Token))
	assert.ErrorIs(t, q.AcknowledgeJob(ctx, "r1", claim.Token), ErrUnknownClaim)

	queued, inProgress = counts(t, q, "r1")
	assert.Equal(t, int64(1), queued)
	assert.Equal(t, int64(0), inProgress)
}

func TestQueue_RequeueStaleClaims(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	q := newQueue(t).WithClock(clock)

	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("a")))
	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("b")))
	stale, ok, err := q.ClaimJob(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute)
	n, err := q.RequeueStaleClaims(ctx, "r1", 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh claims are left alone")

	clock.Advance(5 * time.Minute)
	n, err = q.RequeueStaleClaims(ctx, "r1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	queued, inProgress := counts(t, q, "r1")
	assert.Equal(t, int64(2), queued)
	assert.Zero(t, inProgress)
	assert.ErrorIs(t, q.AcknowledgeJob(ctx, "r1", stale.Token), ErrUnknownClaim)

	again, ok, err := q.ClaimJob(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", again.Job.Node.NodeID, "requeued job is claimed next")
	require.NoError(t, q.AcknowledgeJob(ctx, "r1", again.Token))

	clock.Advance(time.Hour)
	n, err = q.RequeueStaleClaims(ctx, "r1", 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "acknowledged claims are not requeued")
}

func TestQueue_ClaimEmpty(t *testing.T) {
	q := newQueue(t)
	_, ok, err := q.ClaimJob(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_DuplicatesTolerated(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("a")))
	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("a")))
	queued, _ := counts(t, q, "r1")
	assert.Equal(t, int64(2), queued)
}

func TestQueue_FlushIsScopedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("a")))
	require.NoError(t, q.AppendRenderingJob(ctx, "r1", node("b")))
	_, _, err := q.ClaimJob(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, q.AppendRenderingJob(ctx, "r2", node("c")))
	require.NoError(t, q.SetCompletionStatus(ctx, "r1", model.CompletionFailed))

	require.NoError(t, q.Flush(ctx, "r1"))
	require.NoError(t, q.Flush(ctx, "r1"))

	queued, inProgress := counts(t, q, "r1")
	assert.Zero(t, queued)
	assert.Zero(t, inProgress)

	queued, _ = counts(t, q, "r2")
	assert.Equal(t, int64(1), queued, "other releases are untouched")

	status, err := q.GetCompletionStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.CompletionFailed, status, "flush keeps the terminal flag")
}

func TestQueue_CompletionStatusWriteOnce(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	status, err := q.GetCompletionStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.CompletionUnset, status)

	assert.ErrorIs(t, q.SetCompletionStatus(ctx, "r1", model.CompletionUnset), ErrInvalidCompletionStatus)

	require.NoError(t, q.SetCompletionStatus(ctx, "r1", model.CompletionSuccess))
	err = q.SetCompletionStatus(ctx, "r1", model.CompletionFailed)
	assert.ErrorIs(t, err, ErrCompletionStatusAlreadySet)

	status, err = q.GetCompletionStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.CompletionSuccess, status)
}

func TestQueue_ConcurrentClaimsNeverDoubleCount(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	const jobs = 50
	for i := 0; i < jobs; i++ {
		require.NoError(t, q.AppendRenderingJob(ctx, "r1", node(string(rune('a'+i%26)))))
	}

	var (
		mu     sync.Mutex
		tokens []string
		wg     sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claim, ok, err := q.ClaimJob(ctx, "r1")
				if err != nil || !ok {
					return
				}
				mu.Lock()
				tokens = append(tokens, claim.Token)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, tokens, jobs)
	queued, inProgress := counts(t, q, "r1")
	assert.Zero(t, queued)
	assert.Equal(t, int64(jobs), inProgress)

	for _, tok := range tokens {
		require.NoError(t, q.AcknowledgeJob(ctx, "r1", tok))
	}
	_, inProgress = counts(t, q, "r1")
	assert.Zero(t, inProgress)
}
