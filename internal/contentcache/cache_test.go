// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package contentcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/kv/kvtest"
	"github.com/ManuGH/contentrelease/internal/model"
)

func setup(t *testing.T) (*Reader, *Writer) {
	t.Helper()
	_, client := kvtest.New(t)
	keys := kv.NewKeys("test")
	return NewReader(client, keys), NewWriter(client, keys)
}

func TestReader_Missing(t *testing.T) {
	r, _ := setup(t)
	doc, err := r.TryToExtractRendering(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, doc.Complete)
	assert.Equal(t, model.ReasonMissing, doc.IncompleteReason)
}

func TestReader_PartialThenComplete(t *testing.T) {
	ctx := context.Background()
	r, w := setup(t)
	key := model.CacheKey("k1")

	require.NoError(t, w.StoreRendering(ctx, key, model.RenderedDocument{URL: "/a", Content: []byte("<html>")}))
	doc, err := r.TryToExtractRendering(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonPartial, doc.IncompleteReason)

	require.NoError(t, w.StoreRendering(ctx, key, model.RenderedDocument{
		URL: "/a", Content: []byte("<html>full</html>"), Complete: true,
	}))
	doc, err = r.TryToExtractRendering(ctx, key)
	require.NoError(t, err)
	assert.True(t, doc.Complete)
	assert.Equal(t, "/a", doc.URL)
	assert.Equal(t, []byte("<html>full</html>"), doc.Content)
}

func TestWriter_InvalidateMarksStale(t *testing.T) {
	ctx := context.Background()
	r, w := setup(t)
	key := model.CacheKey("k1")

	require.NoError(t, w.Invalidate(ctx, key), "invalidating a missing entry is a no-op")

	require.NoError(t, w.StoreRendering(ctx, key, model.RenderedDocument{URL: "/a", Content: []byte("x"), Complete: true}))
	require.NoError(t, w.Invalidate(ctx, key))

	doc, err := r.TryToExtractRendering(ctx, key)
	require.NoError(t, err)
	assert.False(t, doc.Complete)
	assert.Equal(t, model.ReasonStale, doc.IncompleteReason)

	require.NoError(t, w.StoreRendering(ctx, key, model.RenderedDocument{URL: "/a", Content: []byte("y"), Complete: true}))
	doc, err = r.TryToExtractRendering(ctx, key)
	require.NoError(t, err)
	assert.True(t, doc.Complete, "a fresh render clears the invalidation")
}

func TestWriter_RejectsCompleteWithoutURL(t *testing.T) {
	_, w := setup(t)
	err := w.StoreRendering(context.Background(), "k", model.RenderedDocument{Complete: true})
	assert.ErrorIs(t, err, ErrIncompleteRender)
}
