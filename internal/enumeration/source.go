// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package enumeration holds the frozen list of nodes a release must render.
package enumeration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/model"
)

// ErrAlreadyEnumerated is returned when freezing a release that already has
// an enumeration.
var ErrAlreadyEnumerated = errors.New("release already enumerated")

// freezeScript writes the enumeration only if none exists yet.
// KEYS[1] = enumeration hash, ARGV = field, value, field, value, ...
var freezeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
for i = 1, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// Source is the Redis-backed enumeration of each release.
type Source struct {
	client redis.UniversalClient
	keys   kv.Keys
}

// New returns a Source over client.
func New(client redis.UniversalClient, keys kv.Keys) *Source {
	return &Source{client: client, keys: keys}
}

// Count returns the number of nodes enumerated for the release.
func (s *Source) Count(ctx context.Context, id model.ReleaseID) (int64, error) {
	n, err := s.client.HLen(ctx, s.keys.Enumeration(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count enumeration %s: %w", id, err)
	}
	return n, nil
}

// FindAll returns every enumerated node ordered by identifier. Repeated
// calls return the same sequence as long as the enumeration is unchanged.
func (s *Source) FindAll(ctx context.Context, id model.ReleaseID) ([]model.EnumeratedNode, error) {
	entries, err := s.client.HGetAll(ctx, s.keys.Enumeration(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read enumeration %s: %w", id, err)
	}
	ids := make([]string, 0, len(entries))
	for k := range entries {
		ids = append(ids, k)
	}
	sort.Strings(ids)

	nodes := make([]model.EnumeratedNode, 0, len(ids))
	for _, k := range ids {
		var n model.EnumeratedNode
		if err := json.Unmarshal([]byte(entries[k]), &n); err != nil {
			return nil, fmt.Errorf("decode enumerated node %s: %w", k, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Freeze stores nodes as the release's enumeration. Nodes with identical
// identity are stored once. A release can be frozen only once.
func (s *Source) Freeze(ctx context.Context, id model.ReleaseID, nodes []model.EnumeratedNode) (int, error) {
	args := make([]any, 0, 2*len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return 0, fmt.Errorf("enumerate %s: %w", id, err)
		}
		ident := n.Identifier()
		if _, dup := seen[ident]; dup {
			continue
		}
		seen[ident] = struct{}{}
		payload, err := json.Marshal(n)
		if err != nil {
			return 0, fmt.Errorf("encode enumerated node %s: %w", n.NodeID, err)
		}
		args = append(args, ident, string(payload))
	}
	if len(args) == 0 {
		return 0, nil
	}

	ok, err := freezeScript.Run(ctx, s.client, []string{s.keys.Enumeration(id)}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("freeze enumeration %s: %w", id, err)
	}
	if ok == 0 {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyEnumerated, id)
	}
	return len(seen), nil
}
