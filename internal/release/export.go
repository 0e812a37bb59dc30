// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package release

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/contentrelease/internal/fsutil"
	"github.com/ManuGH/contentrelease/internal/model"
)

// ErrExportCollision is returned when two document URLs map to the same file.
var ErrExportCollision = errors.New("document urls map to the same export file")

// Export writes every document of a release below dir as <path>.gz, keeping
// the stored compression. Each file is replaced atomically, so a reader of
// dir never observes a half-written document. It returns the number of files
// written. Colliding URLs are rejected before anything is written.
func (r *Reader) Export(ctx context.Context, id model.ReleaseID, dir string) (int, error) {
	urls, err := r.URLs(ctx, id)
	if err != nil {
		return 0, err
	}
	rels, err := exportPaths(urls)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	written := 0
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rel := rels[i]
		raw, err := r.Compressed(ctx, id, u)
		if err != nil {
			return written, err
		}
		target, err := fsutil.ConfineRelPath(dir, rel)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", u, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("create export dir: %w", err)
		}
		if err := renameio.WriteFile(target, raw, 0o644); err != nil {
			return written, fmt.Errorf("export %s: %w", u, err)
		}
		written++
	}
	return written, nil
}

// exportPaths maps urls to relative file paths, index-aligned, and fails
// when two of them share a file.
func exportPaths(urls []string) ([]string, error) {
	rels := make([]string, len(urls))
	owner := make(map[string]string, len(urls))
	for i, u := range urls {
		rel, err := exportPath(u)
		if err != nil {
			return nil, err
		}
		if prev, ok := owner[rel]; ok {
			return nil, fmt.Errorf("%w: %q and %q -> %s", ErrExportCollision, prev, u, rel)
		}
		owner[rel] = u
		rels[i] = rel
	}
	return rels, nil
}

// exportPath maps a document URL to a relative file path. Directory-style
// URLs get an index.html.
func exportPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse document url %q: %w", raw, err)
	}
	p := path.Clean("/" + u.Path)
	if strings.HasSuffix(u.Path, "/") || p == "/" {
		p = path.Join(p, "index.html")
	}
	p = strings.TrimPrefix(p, "/")
	if u.Host != "" {
		p = path.Join(u.Host, p)
	}
	return filepath.FromSlash(p) + ".gz", nil
}
