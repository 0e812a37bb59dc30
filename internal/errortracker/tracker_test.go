// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package errortracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/kv/kvtest"
	"github.com/ManuGH/contentrelease/internal/model"
)

func TestTracker_ReportListFlush(t *testing.T) {
	ctx := context.Background()
	_, client := kvtest.New(t)
	tr := New(client, kv.NewKeys("test"))

	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	job := model.RenderingJob{ReleaseID: "r1", Node: model.EnumeratedNode{NodeID: "n1", Workspace: "live"}}
	want := ForJob(job, errors.New("template exploded"), at)

	require.NoError(t, tr.Report(ctx, "r1", want))
	require.NoError(t, tr.Report(ctx, "r2", want))

	got, err := tr.List(ctx, "r1")
	require.NoError(t, err)
	if diff := cmp.Diff([]RenderingError{want}, got); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, job.Node.CacheKey(), got[0].CacheKey)

	require.NoError(t, tr.Flush(ctx, "r1"))
	n, err := tr.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tr.Count(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTracker_MaxEntriesKeepsNewest(t *testing.T) {
	ctx := context.Background()
	_, client := kvtest.New(t)
	tr := New(client, kv.NewKeys("test"))
	tr.MaxEntries = 2

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tr.Report(ctx, "r1", RenderingError{NodeID: id, Message: "x"}))
	}
	got, err := tr.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].NodeID)
	assert.Equal(t, "c", got[1].NodeID)
}
