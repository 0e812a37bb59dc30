// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package release

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

// Reader gives read-only access to a release's documents.
type Reader struct {
	client redis.UniversalClient
	keys   kv.Keys
}

// NewReader returns a Reader over client.
func NewReader(client redis.UniversalClient, keys kv.Keys) *Reader {
	return &Reader{client: client, keys: keys}
}

// Count returns the number of documents in the release.
func (r *Reader) Count(ctx context.Context, id model.ReleaseID) (int64, error) {
	n, err := r.client.HLen(ctx, r.keys.Content(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count documents of release %s: %w", id, err)
	}
	return n, nil
}

// URLs lists the release's document URLs in sorted order.
func (r *Reader) URLs(ctx context.Context, id model.ReleaseID) ([]string, error) {
	urls, err := r.client.HKeys(ctx, r.keys.Content(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents of release %s: %w", id, err)
	}
	sort.Strings(urls)
	return urls, nil
}

// Compressed returns the stored gzip bytes of one document.
func (r *Reader) Compressed(ctx context.Context, id model.ReleaseID, url string) ([]byte, error) {
	raw, err := r.client.HGet(ctx, r.keys.Content(id), url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s from release %s: %w", url, id, err)
	}
	return raw, nil
}

// Document returns the decompressed content of one document.
func (r *Reader) Document(ctx context.Context, id model.ReleaseID, url string) ([]byte, error) {
	raw, err := r.Compressed(ctx, id, url)
	if err != nil {
		return nil, err
	}
	content, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", url, err)
	}
	return content, nil
}
