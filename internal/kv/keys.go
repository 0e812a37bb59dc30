// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kv

import (
	"strings"

	"github.com/ManuGH/contentrelease/internal/model"
)

// DefaultPrefix scopes every key this system writes.
const DefaultPrefix = "crel"

// Keys builds store keys. Release state lives below
// <prefix>:release:<id>:, so two releases never collide and one release's
// state can be dropped or inspected from its namespace alone.
type Keys struct {
	Prefix string
}

// NewKeys returns a key builder; an empty prefix selects DefaultPrefix.
func NewKeys(prefix string) Keys {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{Prefix: prefix}
}

func (k Keys) release(id model.ReleaseID, parts ...string) string {
	return k.Prefix + ":release:" + string(id) + ":" + strings.Join(parts, ":")
}

func (k Keys) QueuePending(id model.ReleaseID) string     { return k.release(id, "queue", "pending") }
func (k Keys) QueueInProgress(id model.ReleaseID) string  { return k.release(id, "queue", "inprogress") }
func (k Keys) QueueClaims(id model.ReleaseID) string      { return k.release(id, "queue", "claims") }
func (k Keys) CompletionStatus(id model.ReleaseID) string { return k.release(id, "status") }
func (k Keys) Lease(id model.ReleaseID) string            { return k.release(id, "lease") }
func (k Keys) Errors(id model.ReleaseID) string           { return k.release(id, "errors") }
func (k Keys) StatsRenderingsPerSecond(id model.ReleaseID) string {
	return k.release(id, "stats", "rps")
}
func (k Keys) StatsProgress(id model.ReleaseID) string { return k.release(id, "stats", "progress") }
func (k Keys) Enumeration(id model.ReleaseID) string   { return k.release(id, "enumeration") }
func (k Keys) Content(id model.ReleaseID) string       { return k.release(id, "content") }

// Document addresses a shared cache entry. Cache entries are not release
// scoped: identical rendering inputs share one entry across releases.
func (k Keys) Document(key model.CacheKey) string {
	return k.Prefix + ":cache:document:" + string(key)
}
