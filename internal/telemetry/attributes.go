// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the render pipeline.
const (
	ReleaseIDKey     = "release.id"
	ReleaseStatusKey = "release.status"
	PassKey          = "render.pass"
	NodesKey         = "render.nodes"
	EnqueuedKey      = "render.enqueued"
	CopiedKey        = "render.copied"

	NodeIDKey    = "node.id"
	WorkspaceKey = "node.workspace"
	CacheKeyKey  = "node.cache_key"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PassAttributes describes one convergence pass.
func PassAttributes(release string, pass, nodes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ReleaseIDKey, release),
		attribute.Int(PassKey, pass),
		attribute.Int(NodesKey, nodes),
	}
}

// NodeAttributes describes a rendering job's node.
func NodeAttributes(nodeID, workspace, cacheKey string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NodeIDKey, nodeID),
		attribute.String(WorkspaceKey, workspace),
		attribute.String(CacheKeyKey, cacheKey),
	}
}

// ErrorAttributes marks a span as failed with a category.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
