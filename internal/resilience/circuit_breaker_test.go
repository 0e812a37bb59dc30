// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clock))

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Second, WithClock(clockwork.NewFakeClock()))

	_ = cb.Execute(fail)
	assert.NoError(t, cb.Execute(ok))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State(), "failures must be consecutive")
}

func TestCircuitBreaker_HalfOpenSingleTrial(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(fail)
	assert.False(t, cb.Ready())
	assert.False(t, cb.Allow())

	clock.Advance(10 * time.Second)
	assert.True(t, cb.Ready())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Ready())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "second trial while the first is outstanding")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(10 * time.Second)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}
