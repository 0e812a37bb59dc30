// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package contentcache reads and writes document renders in the shared
// content cache.
//
// An entry is a Redis hash under the document's cache key:
//
//	url       target URL of the document
//	content   rendered bytes
//	complete  "1" once the render has no holes left
//	stale     "1" after an edit invalidated the render
//
// Workers write entries; the orchestrator only reads them.
package contentcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

const (
	fieldURL      = "url"
	fieldContent  = "content"
	fieldComplete = "complete"
	fieldStale    = "stale"
)

// Reader answers whether a complete render exists for a cache key.
type Reader struct {
	client redis.UniversalClient
	keys   kv.Keys
}

// NewReader returns a Reader over client.
func NewReader(client redis.UniversalClient, keys kv.Keys) *Reader {
	return &Reader{client: client, keys: keys}
}

// TryToExtractRendering looks up the entry for key. Every call reads the
// store; nothing is memoised, so a worker's latest write is always visible.
func (r *Reader) TryToExtractRendering(ctx context.Context, key model.CacheKey) (model.RenderedDocument, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.Document(key)).Result()
	if err != nil {
		return model.RenderedDocument{}, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	if len(fields) == 0 {
		return model.Incomplete(model.ReasonMissing), nil
	}
	if fields[fieldStale] == "1" {
		return model.Incomplete(model.ReasonStale), nil
	}
	if fields[fieldComplete] != "1" || fields[fieldURL] == "" {
		return model.Incomplete(model.ReasonPartial), nil
	}
	return model.RenderedDocument{
		URL:      fields[fieldURL],
		Content:  []byte(fields[fieldContent]),
		Complete: true,
	}, nil
}

// ErrIncompleteRender rejects storing a complete-flagged document without a URL.
var ErrIncompleteRender = errors.New("complete render requires a url")

// Writer is the worker-side half of the cache.
type Writer struct {
	client redis.UniversalClient
	keys   kv.Keys
}

// NewWriter returns a Writer over client.
func NewWriter(client redis.UniversalClient, keys kv.Keys) *Writer {
	return &Writer{client: client, keys: keys}
}

// StoreRendering replaces the entry for key with doc in one transaction and
// clears any earlier invalidation.
func (w *Writer) StoreRendering(ctx context.Context, key model.CacheKey, doc model.RenderedDocument) error {
	if doc.Complete && doc.URL == "" {
		return ErrIncompleteRender
	}
	complete := "0"
	if doc.Complete {
		complete = "1"
	}
	docKey := w.keys.Document(key)
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey)
		pipe.HSet(ctx, docKey,
			fieldURL, doc.URL,
			fieldContent, doc.Content,
			fieldComplete, complete,
			fieldStale, "0",
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

// Invalidate marks the entry stale, if one exists. A stale entry reads as
// incomplete until a worker stores a fresh render.
func (w *Writer) Invalidate(ctx context.Context, key model.CacheKey) error {
	docKey := w.keys.Document(key)
	n, err := w.client.Exists(ctx, docKey).Result()
	if err != nil {
		return fmt.Errorf("invalidate cache entry %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}
	if err := w.client.HSet(ctx, docKey, fieldStale, "1").Err(); err != nil {
		return fmt.Errorf("invalidate cache entry %s: %w", key, err)
	}
	return nil
}
