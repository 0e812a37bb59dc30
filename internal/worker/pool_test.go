// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/resilience"
)

const rid = model.ReleaseID("r1")

type memQueue struct {
	mu       sync.Mutex
	pending  []model.RenderingJob
	claimed  map[string]model.RenderingJob
	acked    int
	status   model.CompletionStatus
	claimErr error
	next     int
}

func newMemQueue(nodes ...model.EnumeratedNode) *memQueue {
	q := &memQueue{claimed: map[string]model.RenderingJob{}}
	for _, n := range nodes {
		q.pending = append(q.pending, model.RenderingJob{ReleaseID: rid, Node: n})
	}
	return q
}

func (q *memQueue) ClaimJob(_ context.Context, _ model.ReleaseID) (queue.Claim, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return queue.Claim{}, false, q.claimErr
	}
	if len(q.pending) == 0 {
		return queue.Claim{}, false, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.next++
	token := string(rune('a' + q.next))
	q.claimed[token] = job
	return queue.Claim{Token: token, Job: job}, true, nil
}

func (q *memQueue) AcknowledgeJob(_ context.Context, _ model.ReleaseID, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.claimed[token]; !ok {
		return queue.ErrUnknownClaim
	}
	delete(q.claimed, token)
	q.acked++
	return nil
}

func (q *memQueue) GetCompletionStatus(_ context.Context, _ model.ReleaseID) (model.CompletionStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status, nil
}

func (q *memQueue) setStatus(s model.CompletionStatus) {
	q.mu.Lock()
	q.status = s
	q.mu.Unlock()
}

func (q *memQueue) counts() (pending, inProgress, acked int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.claimed), q.acked
}

type memCache struct {
	mu   sync.Mutex
	docs map[model.CacheKey]model.RenderedDocument
}

func (c *memCache) StoreRendering(_ context.Context, key model.CacheKey, doc model.RenderedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs == nil {
		c.docs = map[model.CacheKey]model.RenderedDocument{}
	}
	c.docs[key] = doc
	return nil
}

func (c *memCache) get(key model.CacheKey) (model.RenderedDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[key]
	return d, ok
}

type memErrors struct {
	mu   sync.Mutex
	errs []errortracker.RenderingError
}

func (e *memErrors) Report(_ context.Context, _ model.ReleaseID, re errortracker.RenderingError) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, re)
	return nil
}

func (e *memErrors) list() []errortracker.RenderingError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]errortracker.RenderingError(nil), e.errs...)
}

func processed(t *testing.T, result string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, jobsProcessed.WithLabelValues(result).Write(&m))
	return m.GetCounter().GetValue()
}

func node(id string) model.EnumeratedNode {
	return model.EnumeratedNode{NodeID: id, Workspace: "live"}
}

func htmlRenderer() Renderer {
	return RendererFunc(func(_ context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
		return model.RenderedDocument{
			URL:      "/" + job.Node.NodeID,
			Content:  []byte("<html>" + job.Node.NodeID + "</html>"),
			Complete: true,
		}, nil
	})
}

func newPool(q *memQueue, c *memCache, e *memErrors, r Renderer) *Pool {
	return &Pool{
		Queue:       q,
		Cache:       c,
		Errors:      e,
		Renderer:    r,
		Logger:      zerolog.Nop(),
		Concurrency: 3,
		IdleWait:    time.Millisecond,
	}
}

func runAsync(ctx context.Context, p *Pool) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, rid) }()
	return done
}

func TestPool_RendersAndStopsOnCompletionStatus(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	nodes := []model.EnumeratedNode{node("a"), node("b"), node("c"), node("d")}
	q := newMemQueue(nodes...)
	c := &memCache{}
	p := newPool(q, c, &memErrors{}, htmlRenderer())

	done := runAsync(context.Background(), p)

	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == len(nodes)
	}, 5*time.Second, time.Millisecond)

	q.setStatus(model.CompletionSuccess)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after completion status")
	}

	for _, n := range nodes {
		doc, ok := c.get(n.CacheKey())
		require.True(t, ok, n.NodeID)
		assert.True(t, doc.Complete)
		assert.Equal(t, "/"+n.NodeID, doc.URL)
	}
	pending, inProgress, _ := q.counts()
	assert.Zero(t, pending)
	assert.Zero(t, inProgress)
}

func TestPool_ReportsRenderFailuresAndAcknowledges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue(node("ok"), node("broken"), node("panics"))
	c := &memCache{}
	e := &memErrors{}
	r := RendererFunc(func(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
		switch job.Node.NodeID {
		case "broken":
			return model.RenderedDocument{}, errors.New("template missing")
		case "panics":
			panic("nil content")
		}
		return htmlRenderer().Render(ctx, job)
	})
	p := newPool(q, c, e, r)
	p.Concurrency = 1
	failedBefore := processed(t, "failed")
	completeBefore := processed(t, "complete")

	done := runAsync(context.Background(), p)
	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == 3
	}, 5*time.Second, time.Millisecond)
	q.setStatus(model.CompletionFailed)
	require.NoError(t, <-done)

	_, ok := c.get(node("ok").CacheKey())
	assert.True(t, ok)
	_, ok = c.get(node("broken").CacheKey())
	assert.False(t, ok)

	errs := e.list()
	require.Len(t, errs, 2)
	byNode := map[string]string{}
	for _, re := range errs {
		byNode[re.NodeID] = re.Message
	}
	assert.Equal(t, "template missing", byNode["broken"])
	assert.Contains(t, byNode["panics"], "renderer panic")

	assert.Equal(t, 2.0, processed(t, "failed")-failedBefore)
	assert.Equal(t, 1.0, processed(t, "complete")-completeBefore)
}

func TestPool_StoresPartialRenders(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue(node("a"))
	c := &memCache{}
	r := RendererFunc(func(_ context.Context, _ model.RenderingJob) (model.RenderedDocument, error) {
		return model.RenderedDocument{URL: "/a", Content: []byte("<html>")}, nil
	})
	p := newPool(q, c, &memErrors{}, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == 1
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	doc, ok := c.get(node("a").CacheKey())
	require.True(t, ok)
	assert.False(t, doc.Complete)
}

func TestPool_CancelledMidRenderStillAcknowledges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue(node("slow"))
	started := make(chan struct{})
	r := RendererFunc(func(ctx context.Context, _ model.RenderingJob) (model.RenderedDocument, error) {
		close(started)
		<-ctx.Done()
		return model.RenderedDocument{}, ctx.Err()
	})
	p := newPool(q, &memCache{}, &memErrors{}, r)
	p.Concurrency = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	<-started
	cancel()
	require.NoError(t, <-done)

	_, inProgress, acked := q.counts()
	assert.Zero(t, inProgress)
	assert.Equal(t, 1, acked)
}

func TestPool_ClaimErrorStopsPool(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue()
	q.claimErr = errors.New("connection refused")
	p := newPool(q, &memCache{}, &memErrors{}, htmlRenderer())

	err := p.Run(context.Background(), rid)
	require.Error(t, err)
	assert.ErrorIs(t, err, q.claimErr)
}

func TestPool_ClaimRateLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue(node("a"), node("b"), node("c"))
	p := newPool(q, &memCache{}, &memErrors{}, htmlRenderer())
	p.Concurrency = 1
	p.ClaimsPerSecond = 1000

	done := runAsync(context.Background(), p)
	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == 3
	}, 5*time.Second, time.Millisecond)
	q.setStatus(model.CompletionSuccess)
	require.NoError(t, <-done)
}

func TestPool_BreakerPausesClaims(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMemQueue(node("a"), node("b"), node("c"), node("d"), node("e"))
	var calls atomic.Int32
	down := RendererFunc(func(context.Context, model.RenderingJob) (model.RenderedDocument, error) {
		calls.Add(1)
		return model.RenderedDocument{}, errors.New("render service unavailable")
	})
	errs := &memErrors{}
	p := newPool(q, &memCache{}, errs, down)
	p.Concurrency = 1
	breakerClock := clockwork.NewFakeClock()
	p.Breaker = resilience.NewCircuitBreaker("renderer-test", 2, time.Minute, resilience.WithClock(breakerClock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, p)

	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == 2
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, resilience.StateOpen, p.Breaker.State())

	// open breaker: nothing else is claimed
	time.Sleep(20 * time.Millisecond)
	pending, _, _ := q.counts()
	assert.Equal(t, 3, pending)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, errs.list(), 2)

	// one half-open trial call, which fails and reopens
	breakerClock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		_, _, acked := q.counts()
		return acked == 3
	}, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, resilience.StateOpen, p.Breaker.State())

	// the release gives up while the breaker is open; the pool still stops
	q.setStatus(model.CompletionFailed)
	require.NoError(t, <-done)
}
