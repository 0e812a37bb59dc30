// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "fmt"

// CompletionStatus is the terminal flag of a release's rendering phase.
// The zero value means the phase is in progress or has not started.
type CompletionStatus string

const (
	CompletionUnset   CompletionStatus = ""
	CompletionSuccess CompletionStatus = "success"
	CompletionFailed  CompletionStatus = "failed"
)

// IsTerminal returns true once a status has been recorded.
func (s CompletionStatus) IsTerminal() bool {
	switch s {
	case CompletionSuccess, CompletionFailed:
		return true
	}
	return false
}

// ParseCompletionStatus maps a stored value back to a CompletionStatus.
// An empty string yields CompletionUnset.
func ParseCompletionStatus(raw string) (CompletionStatus, error) {
	switch s := CompletionStatus(raw); s {
	case CompletionUnset, CompletionSuccess, CompletionFailed:
		return s, nil
	default:
		return CompletionUnset, fmt.Errorf("unknown completion status %q", raw)
	}
}

// IncompleteReason explains why a cache lookup did not yield a complete render.
type IncompleteReason string

const (
	ReasonMissing IncompleteReason = "missing"
	ReasonPartial IncompleteReason = "partial"
	ReasonStale   IncompleteReason = "stale"
)
