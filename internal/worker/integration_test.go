// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/contentcache"
	"github.com/ManuGH/contentrelease/internal/enumeration"
	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/kv/kvtest"
	"github.com/ManuGH/contentrelease/internal/model"
	"github.com/ManuGH/contentrelease/internal/orchestrator"
	"github.com/ManuGH/contentrelease/internal/queue"
	"github.com/ManuGH/contentrelease/internal/release"
	"github.com/ManuGH/contentrelease/internal/stats"
	"github.com/ManuGH/contentrelease/internal/worker"
)

// A page that first renders partially converges once the pool renders it
// again in the following pass.
func TestPoolWithOrchestrator_Converges(t *testing.T) {
	_, client := kvtest.New(t)
	keys := kv.NewKeys("it")
	id := model.ReleaseID("it-1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := model.EnumeratedNode{NodeID: "a", Workspace: "live"}
	b := model.EnumeratedNode{NodeID: "b", Workspace: "live"}
	_, err := enumeration.New(client, keys).Freeze(ctx, id, []model.EnumeratedNode{a, b})
	require.NoError(t, err)

	q := queue.New(client, keys)
	errs := errortracker.New(client, keys)

	var mu sync.Mutex
	attempts := map[string]int{}
	renderer := worker.RendererFunc(func(_ context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
		mu.Lock()
		attempts[job.Node.NodeID]++
		n := attempts[job.Node.NodeID]
		mu.Unlock()
		doc := model.RenderedDocument{URL: "/" + job.Node.NodeID, Content: []byte("<html>" + job.Node.NodeID + "</html>")}
		doc.Complete = job.Node.NodeID != "b" || n > 1
		return doc, nil
	})

	pool := &worker.Pool{
		Queue:       q,
		Cache:       contentcache.NewWriter(client, keys),
		Errors:      errs,
		Renderer:    renderer,
		Logger:      zerolog.Nop(),
		Concurrency: 2,
		IdleWait:    time.Millisecond,
	}
	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(ctx, id) }()

	orch := &orchestrator.Orchestrator{
		Queue:        q,
		Cache:        contentcache.NewReader(client, keys),
		Writer:       release.NewWriter(client, keys),
		Errors:       errs,
		Stats:        stats.New(client, keys),
		Enumeration:  enumeration.New(client, keys),
		Leaser:       orchestrator.RedisLeaser{Client: client, Keys: keys, Owner: "it"},
		PollInterval: 2 * time.Millisecond,
		SampleEvery:  1,
	}
	res, err := orch.RenderContentRelease(ctx, id, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, model.CompletionSuccess, res.Status)
	assert.Equal(t, 3, res.Passes)

	select {
	case err := <-poolDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool kept running after the release finished")
	}

	reader := release.NewReader(client, keys)
	urls, err := reader.URLs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, urls)

	body, err := reader.Document(ctx, id, "/b")
	require.NoError(t, err)
	assert.Equal(t, "<html>b</html>", string(body))
}
