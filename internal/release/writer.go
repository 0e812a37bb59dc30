// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package release stores rendered documents into a content release and reads
// them back. Documents are kept gzip-compressed at the highest level: a
// release is written once and read many times.
package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

// ErrDocumentNotFound is returned for a URL that the release does not contain.
var ErrDocumentNotFound = errors.New("document not found in release")

// Writer appends rendered documents to a release.
type Writer struct {
	client redis.UniversalClient
	keys   kv.Keys
}

// NewWriter returns a Writer over client.
func NewWriter(client redis.UniversalClient, keys kv.Keys) *Writer {
	return &Writer{client: client, keys: keys}
}

// WriteRenderedDocument compresses content and stores it under url. Writing
// the same url twice overwrites the earlier document.
func (w *Writer) WriteRenderedDocument(ctx context.Context, id model.ReleaseID, url string, content []byte) error {
	if url == "" {
		return errors.New("write rendered document: empty url")
	}
	compressed, err := compress(content)
	if err != nil {
		return fmt.Errorf("compress %s: %w", url, err)
	}
	if err := w.client.HSet(ctx, w.keys.Content(id), url, compressed).Err(); err != nil {
		return fmt.Errorf("write %s to release %s: %w", url, id, err)
	}
	return nil
}

func compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}
