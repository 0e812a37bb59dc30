// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// RenderedDocument is the result of a content cache lookup. A complete
// document carries its URL and full content; an incomplete one carries the
// reason it cannot be copied yet.
type RenderedDocument struct {
	URL              string
	Content          []byte
	Complete         bool
	IncompleteReason IncompleteReason
}

// Incomplete builds a lookup result that must not be copied into a release.
func Incomplete(reason IncompleteReason) RenderedDocument {
	return RenderedDocument{IncompleteReason: reason}
}

// RenderingJob is the unit of queued work consumed by a worker.
type RenderingJob struct {
	ReleaseID ReleaseID      `json:"releaseId"`
	Node      EnumeratedNode `json:"node"`
}

// RenderingProgress is a snapshot of the current pass.
type RenderingProgress struct {
	RemainingJobs int64 `json:"remainingJobs"`
	TotalJobs     int64 `json:"totalJobs"`
}
