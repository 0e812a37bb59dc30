// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldReleaseID     = "release_id"
	FieldCorrelationID = "correlation_id"
	FieldNodeID        = "node_id"
	FieldWorkspace     = "workspace"
	FieldCacheKey      = "cache_key"
	FieldOwner         = "owner"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Convergence fields
	FieldPass       = "pass"
	FieldMaxPasses  = "max_passes"
	FieldStatus     = "status"
	FieldReason     = "reason"
	FieldQueued     = "queued"
	FieldInProgress = "in_progress"
	FieldEnqueued   = "enqueued"
	FieldCopied     = "copied"
	FieldTotal      = "total"
	FieldRate       = "renderings_per_second"

	// Path / URL fields
	FieldURL  = "url"
	FieldPath = "path"
)
