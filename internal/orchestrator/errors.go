// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ManuGH/contentrelease/internal/model"
)

var (
	// ErrEmptyEnumeration is returned for a release without pages. Such a
	// release is marked failed so it can never go live.
	ErrEmptyEnumeration = errors.New("content release enumeration is empty")

	// ErrLeaseHeld is returned when another orchestrator renders the release.
	ErrLeaseHeld = errors.New("release is being rendered by another orchestrator")

	// ErrLeaseLost is returned when the render lease lapsed mid-run. The run
	// stops without recording a status; another orchestrator may own it now.
	ErrLeaseLost = errors.New("render lease lost")
)

// AlreadyCompletedError reports a render request for a release whose
// completion status is already recorded. The status is left untouched.
type AlreadyCompletedError struct {
	ReleaseID model.ReleaseID
	Status    model.CompletionStatus
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("release %s already has completion status %q; refusing to render again", e.ReleaseID, e.Status)
}

// ConvergenceError reports a release that still had incomplete pages after
// the last allowed pass.
type ConvergenceError struct {
	ReleaseID model.ReleaseID
	Passes    int
	Pending   int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("release %s did not converge after %d passes; %d pages still incomplete", e.ReleaseID, e.Passes, e.Pending)
}
