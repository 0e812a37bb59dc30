// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the value types shared by the orchestrator, the
// store-backed collaborators and the workers.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidReleaseID is returned for identifiers that cannot scope store keys.
var ErrInvalidReleaseID = errors.New("invalid content release identifier")

// ReleaseID names one content release. All shared-store keys of a release
// are scoped by it.
type ReleaseID string

// ParseReleaseID validates raw and returns it as a ReleaseID.
func ParseReleaseID(raw string) (ReleaseID, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidReleaseID)
	}
	for _, r := range raw {
		if r == ':' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidReleaseID, raw, r)
		}
	}
	return ReleaseID(raw), nil
}

func (id ReleaseID) String() string { return string(id) }

// CacheKey identifies a document render in the shared content cache.
// Nodes with identical rendering inputs map to the same key, across releases.
type CacheKey string

func (k CacheKey) String() string { return string(k) }

// EnumeratedNode is one page a release must render: the node reference plus
// the context it is rendered in.
type EnumeratedNode struct {
	NodeID     string            `json:"nodeId" yaml:"nodeId"`
	Workspace  string            `json:"workspace" yaml:"workspace"`
	Dimensions map[string]string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Arguments  map[string]string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Validate checks the fields required to address and render the node.
func (n EnumeratedNode) Validate() error {
	if strings.TrimSpace(n.NodeID) == "" {
		return errors.New("node id is empty")
	}
	if strings.TrimSpace(n.Workspace) == "" {
		return fmt.Errorf("node %s: workspace is empty", n.NodeID)
	}
	return nil
}

// CacheKey derives the document cache key from identity and variant.
// Map fields are encoded in sorted key order so the result is deterministic.
func (n EnumeratedNode) CacheKey() CacheKey {
	var b strings.Builder
	writeField(&b, n.NodeID)
	writeField(&b, n.Workspace)
	writeMap(&b, n.Dimensions)
	writeMap(&b, n.Arguments)
	return CacheKey(fmt.Sprintf("%016x", xxhash.Sum64String(b.String())))
}

// Identifier is a stable, human-readable identity used for enumeration
// membership and log fields.
func (n EnumeratedNode) Identifier() string {
	return n.NodeID + "@" + n.Workspace + "#" + string(n.CacheKey())
}

// writeField length-prefixes s so that adjacent fields cannot run together.
func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func writeMap(b *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString(strconv.Itoa(len(keys)))
	b.WriteByte('{')
	for _, k := range keys {
		writeField(b, k)
		writeField(b, m[k])
	}
	b.WriteByte('}')
}
