// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/kv/kvtest"
	"github.com/ManuGH/contentrelease/internal/model"
)

func TestTracker_RecordAndSnapshot(t *testing.T) {
	ctx := context.Background()
	_, client := kvtest.New(t)
	tr := New(client, kv.NewKeys("test"))

	require.NoError(t, tr.AddDataPointForRenderingsPerSecond(ctx, "stats-r1", 2.5))
	require.NoError(t, tr.AddDataPointForRenderingsPerSecond(ctx, "stats-r1", 4))
	require.NoError(t, tr.UpdateRenderingProgress(ctx, "stats-r1", model.RenderingProgress{RemainingJobs: 3, TotalJobs: 10}))

	snap, err := tr.Snapshot(ctx, "stats-r1")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 4}, snap.RenderingsPerSecond)
	assert.Equal(t, model.RenderingProgress{RemainingJobs: 3, TotalJobs: 10}, snap.Progress)

	assert.Equal(t, 4.0, testutil.ToFloat64(renderingsPerSecond.WithLabelValues("stats-r1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(progressRemaining.WithLabelValues("stats-r1")))
}

func TestTracker_FlushClearsRelease(t *testing.T) {
	ctx := context.Background()
	_, client := kvtest.New(t)
	tr := New(client, kv.NewKeys("test"))

	require.NoError(t, tr.AddDataPointForRenderingsPerSecond(ctx, "stats-r2", 1))
	require.NoError(t, tr.UpdateRenderingProgress(ctx, "stats-r2", model.RenderingProgress{RemainingJobs: 1, TotalJobs: 1}))
	require.NoError(t, tr.Flush(ctx, "stats-r2"))

	snap, err := tr.Snapshot(ctx, "stats-r2")
	require.NoError(t, err)
	assert.Empty(t, snap.RenderingsPerSecond)
	assert.Zero(t, snap.Progress)
}

func TestTracker_SeriesIsBounded(t *testing.T) {
	ctx := context.Background()
	_, client := kvtest.New(t)
	tr := New(client, kv.NewKeys("test"))
	tr.maxDataPoints = 3

	for i := 1; i <= 5; i++ {
		require.NoError(t, tr.AddDataPointForRenderingsPerSecond(ctx, "stats-r3", float64(i)))
	}
	snap, err := tr.Snapshot(ctx, "stats-r3")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, snap.RenderingsPerSecond)
}
